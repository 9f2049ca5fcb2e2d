// File: backend/internal/scraper/scraper.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/linkflowhq/linkflow/backend/internal/config"
	"github.com/linkflowhq/linkflow/backend/internal/links"
)

const maxBodyReadBytes = 4 * 1024 * 1024

// Scraper is the collector boundary: it fetches one page and turns its
// anchors into normalized, deduplicated candidates ready for the
// validation engine. It never crawls beyond the page it was given.
type Scraper struct {
	cfg    config.ScraperConfig
	client *http.Client
}

func New(cfg config.ScraperConfig) *Scraper {
	dialer := &net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}
	return &Scraper{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

// CollectLinks fetches pageURL and extracts its anchor candidates in
// document order. URLs are resolved against the final (post-redirect)
// location, stripped of fragment and query, deduplicated, and bounded by
// the configured URL-length and candidate-count caps.
func (s *Scraper) CollectLinks(ctx context.Context, pageURL string) ([]links.Candidate, error) {
	start := time.Now()
	pageURL = strings.TrimSpace(pageURL)
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		pageURL = "https://" + pageURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", pageURL, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("page fetch for %s returned status %d", pageURL, resp.StatusCode)
	}

	baseURL := resp.Request.URL

	// Convert to UTF-8 before parsing so non-UTF-8 pages keep their
	// anchor text intact.
	utf8Reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyReadBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("charset detection for %s failed: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("parse of %s failed: %w", pageURL, err)
	}

	candidates := s.extract(doc, baseURL)
	log.Printf("Scraper: Collected %d unique links from %s in %s", len(candidates), baseURL, time.Since(start).Round(time.Millisecond))
	return candidates, nil
}

func (s *Scraper) extract(doc *goquery.Document, base *url.URL) []links.Candidate {
	seen := make(map[string]struct{})
	var out []links.Candidate

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if skipHref(href) {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		// Normalization rule inherited from the upstream collector:
		// drop fragment and query so variants collapse to one
		// candidate.
		resolved.Fragment = ""
		resolved.RawQuery = ""
		normalized := resolved.String()
		if len(normalized) > s.cfg.MaxURLLength {
			return true
		}
		if _, dup := seen[normalized]; dup {
			return true
		}
		seen[normalized] = struct{}{}

		out = append(out, links.Candidate{
			Text: displayText(sel.Text(), normalized, s.cfg.MaxTextLength),
			URL:  normalized,
			Host: resolved.Host,
		})
		return len(out) < s.cfg.MaxLinks
	})
	return out
}

// skipHref filters the schemes and pseudo-links the checker has no
// business probing.
func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "file:", "data:", "about:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// displayText normalizes anchor text for reporting: collapsed whitespace,
// truncated to maxLen runes, with a URL prefix standing in for anchors
// that carry no text at all.
func displayText(text, normalizedURL string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		text = normalizedURL
		if len(text) > 50 {
			text = text[:50]
		}
		return text
	}
	runes := []rune(text)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return text
}
