// File: backend/internal/prober/prober.go
package prober

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/linkflowhq/linkflow/backend/internal/config"
	"github.com/linkflowhq/linkflow/backend/internal/links"
)

// rangeHeader asks for just enough body to get a status line out of
// servers that reject HEAD; the body itself is never read.
const rangeHeader = "bytes=0-1023"

// Prober performs one live HTTP reachability check per URL: a HEAD
// request first, and a single byte-range GET retry when (and only when)
// the server answered the HEAD with 405. It keeps no state between calls
// and is safe for unbounded concurrent use; the *http.Client carrying the
// connection pool is injected by the caller.
type Prober struct {
	cfg config.ProberConfig
}

func New(cfg config.ProberConfig) *Prober {
	return &Prober{cfg: cfg}
}

// Probe checks rawURL and resolves every failure locally into the
// outcome's error taxonomy; it never returns an error. Duration covers
// both attempts when the fallback fires. The result is named so the
// deferred Finalize stamps the value actually handed back.
func (p *Prober) Probe(ctx context.Context, client *http.Client, rawURL string) (outcome links.Outcome) {
	start := time.Now()
	defer func() { outcome.Finalize(start) }()

	resp, err := p.attempt(ctx, client, http.MethodHead, rawURL)
	if err != nil {
		if resp != nil {
			// Redirect cap reached: the client hands back the last
			// response together with the error, so a status code is
			// still available and classified by the usual range rule.
			outcome.StatusCode = resp.StatusCode
			outcome.Valid = links.Classify(resp.StatusCode)
			outcome.ErrorKind = links.ErrKindHTTPStatus
			outcome.Error = err.Error()
			drainAndClose(resp)
			return outcome
		}
		outcome.ErrorKind, outcome.Error = classifyError(ctx, err)
		return outcome
	}
	drainAndClose(resp)

	if resp.StatusCode == http.StatusMethodNotAllowed {
		return p.fallbackGet(ctx, client, rawURL, &outcome)
	}

	outcome.StatusCode = resp.StatusCode
	outcome.Valid = links.Classify(resp.StatusCode)
	return outcome
}

// fallbackGet is the one retry permitted after a 405: a GET restricted to
// the first KiB. Whatever it produces (the 405 from the HEAD is discarded)
// becomes the final outcome.
func (p *Prober) fallbackGet(ctx context.Context, client *http.Client, rawURL string, outcome *links.Outcome) links.Outcome {
	resp, err := p.attempt(ctx, client, http.MethodGet, rawURL)
	if err != nil {
		if resp != nil {
			outcome.StatusCode = resp.StatusCode
			outcome.Valid = links.Classify(resp.StatusCode)
			outcome.ErrorKind = links.ErrKindHTTPStatus
			outcome.Error = err.Error()
			drainAndClose(resp)
			return *outcome
		}
		outcome.ErrorKind, outcome.Error = classifyError(ctx, err)
		return *outcome
	}
	drainAndClose(resp)

	outcome.StatusCode = resp.StatusCode
	outcome.Valid = links.Classify(resp.StatusCode)
	return *outcome
}

func (p *Prober) attempt(ctx context.Context, client *http.Client, method, rawURL string) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Cache-Control", "no-cache")
	if method == http.MethodGet {
		req.Header.Set("Range", rangeHeader)
	}

	// On a redirect-policy error the client returns the last response
	// alongside the error; it is passed through so the caller can
	// salvage the status code.
	return client.Do(req)
}

// classifyError maps a transport failure onto the probe taxonomy. Only
// explicit timeouts become ErrKindTimeout; url.Error covers DNS,
// connect and TLS failures; everything else is unknown.
func classifyError(ctx context.Context, err error) (links.ErrorKind, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return links.ErrKindTimeout, "request timed out"
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout() {
			return links.ErrKindTimeout, "request timed out"
		}
		if ctx.Err() == context.DeadlineExceeded {
			return links.ErrKindTimeout, "request timed out"
		}
		return links.ErrKindNetwork, uerr.Error()
	}
	return links.ErrKindUnknown, err.Error()
}

// drainAndClose releases the connection back to the pool. A probe never
// wants the body, so nothing is copied out.
func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	resp.Body.Close()
}
