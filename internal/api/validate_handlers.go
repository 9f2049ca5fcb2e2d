// File: backend/internal/api/validate_handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/linkflowhq/linkflow/backend/internal/links"
	"github.com/linkflowhq/linkflow/backend/internal/scheduler"
)

// --- Structs for Validation Handlers ---

// LinkInput is one candidate as supplied over the API. Host is derived
// server-side from the URL authority.
type LinkInput struct {
	Text string `json:"text,omitempty"`
	URL  string `json:"url"`
}

type LinkValidationRequest struct {
	Links []LinkInput `json:"links"`
}

type LinkValidationResponse struct {
	Results []links.ValidatedLink `json:"results"`
	Error   string                `json:"error,omitempty"`
}

type ScrapeRequest struct {
	URL      string `json:"url"`
	Validate bool   `json:"validate,omitempty"`
}

type ScrapeResponse struct {
	PageURL    string                `json:"pageUrl"`
	Candidates []links.Candidate     `json:"candidates"`
	Results    []links.ValidatedLink `json:"results,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// buildCandidates turns API inputs into engine candidates, enforcing the
// boundary invariants the engine assumes: absolute http(s) URLs within
// the configured length bound.
func (h *APIHandler) buildCandidates(inputs []LinkInput) ([]links.Candidate, error) {
	h.configMutex.RLock()
	maxURLLength := h.Config.Scraper.MaxURLLength
	h.configMutex.RUnlock()

	candidates := make([]links.Candidate, 0, len(inputs))
	for i, in := range inputs {
		if in.URL == "" {
			return nil, fmt.Errorf("link %d: empty URL", i)
		}
		if len(in.URL) > maxURLLength {
			return nil, fmt.Errorf("link %d: URL exceeds %d characters", i, maxURLLength)
		}
		u, err := url.Parse(in.URL)
		if err != nil {
			return nil, fmt.Errorf("link %d: invalid URL: %v", i, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("link %d: URL must be absolute http(s), got scheme '%s'", i, u.Scheme)
		}
		text := in.Text
		if text == "" {
			text = in.URL
		}
		candidates = append(candidates, links.Candidate{Text: text, URL: in.URL, Host: u.Host})
	}
	return candidates, nil
}

// ValidateLinksHandler runs one batch validation and responds with the
// full ordered result set, one entry per input link.
func (h *APIHandler) ValidateLinksHandler(w http.ResponseWriter, r *http.Request) {
	var req LinkValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()
	if len(req.Links) == 0 {
		respondWithError(w, http.StatusBadRequest, "No links provided")
		return
	}

	candidates, err := h.buildCandidates(req.Links)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("API Batch: Validating %d links.", len(candidates))
	started := time.Now()
	results, err := h.newScheduler().Run(r.Context(), candidates)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Printf("API Batch: Run cancelled after %s: %v", time.Since(started), err)
			return
		}
		log.Printf("API Error: ValidateLinksHandler - Run failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Validation run failed: "+err.Error())
		return
	}
	log.Printf("API Batch: Completed validation for %d links in %s.", len(results), time.Since(started))
	respondWithJSON(w, http.StatusOK, LinkValidationResponse{Results: results})
}

// ValidateLinksStreamHandler streams results over SSE as probes resolve.
// Links arrive as repeated 'link' query parameters; each event carries
// the link's original index, so the client can order the final report.
func (h *APIHandler) ValidateLinksStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Printf("API Error: ValidateLinksStreamHandler - Streaming unsupported.")
		respondWithError(w, http.StatusInternalServerError, "Streaming unsupported!")
		return
	}
	linksQuery := r.URL.Query()["link"]
	if len(linksQuery) == 0 {
		respondWithError(w, http.StatusBadRequest, "No links provided")
		return
	}
	inputs := make([]LinkInput, len(linksQuery))
	for i, u := range linksQuery {
		inputs[i] = LinkInput{URL: u}
	}
	candidates, err := h.buildCandidates(inputs)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, wait, err := h.newScheduler().RunStream(r.Context(), candidates)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Validation run failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	eventID := 0
	log.Printf("API Stream: Starting to stream results for %d links.", len(candidates))
	for vl := range events {
		eventID++
		jsonData, marshalErr := json.Marshal(vl)
		if marshalErr != nil {
			log.Printf("API Error: ValidateLinksStreamHandler - Marshal error for %s: %v", vl.URL, marshalErr)
			errorData, _ := json.Marshal(map[string]string{"url": vl.URL, "error": "Marshal error: " + marshalErr.Error()})
			fmt.Fprintf(w, "id: %d\nevent: link_error\ndata: %s\n\n", eventID, string(errorData))
			flusher.Flush()
			continue
		}
		fmt.Fprintf(w, "id: %d\nevent: link_result\ndata: %s\n\n", eventID, string(jsonData))
		flusher.Flush()
	}
	if err := wait(); err != nil {
		log.Printf("API Stream: Run ended with error after %d events: %v", eventID, err)
		fmt.Fprintf(w, "event: error\ndata: {\"message\": %q}\n\n", err.Error())
		flusher.Flush()
		return
	}
	fmt.Fprintf(w, "event: done\ndata: Stream completed for %d links.\n\n", len(candidates))
	flusher.Flush()
	log.Printf("API Stream: Completed streaming %d results.", eventID)
}

// ScrapeLinksHandler collects candidates from a page, optionally running
// the full validation pipeline over them in the same request.
func (h *APIHandler) ScrapeLinksHandler(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()
	if req.URL == "" {
		respondWithError(w, http.StatusBadRequest, "No page URL provided")
		return
	}

	candidates, err := h.newScraper().CollectLinks(r.Context(), req.URL)
	if err != nil {
		log.Printf("API Error: ScrapeLinksHandler - Collect failed for %s: %v", req.URL, err)
		respondWithError(w, http.StatusBadGateway, "Page collection failed: "+err.Error())
		return
	}

	resp := ScrapeResponse{PageURL: req.URL, Candidates: candidates}
	if req.Validate && len(candidates) > 0 {
		results, runErr := h.newScheduler().Run(r.Context(), candidates)
		if runErr != nil {
			if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
				return
			}
			if errors.Is(runErr, scheduler.ErrNoCandidates) {
				respondWithJSON(w, http.StatusOK, resp)
				return
			}
			respondWithError(w, http.StatusInternalServerError, "Validation run failed: "+runErr.Error())
			return
		}
		resp.Results = results
	}
	respondWithJSON(w, http.StatusOK, resp)
}
