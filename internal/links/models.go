// File: backend/internal/links/models.go
package links

import "time"

// ErrorKind classifies a failed probe. An empty kind means the probe
// obtained a status code (which may still be an invalid one).
type ErrorKind string

const (
	ErrKindNone       ErrorKind = ""
	ErrKindTimeout    ErrorKind = "timeout"
	ErrKindNetwork    ErrorKind = "network"
	ErrKindHTTPStatus ErrorKind = "http_status"
	ErrKindUnknown    ErrorKind = "unknown"
)

// Candidate is one discovered hyperlink handed to the validation engine.
// URL is absolute and already normalized (no fragment, no query) by the
// collector; the engine does not re-normalize.
type Candidate struct {
	Text string `json:"text"`
	URL  string `json:"url"`
	Host string `json:"host"`
}

// Outcome is the result of probing a single URL. StatusCode 0 means no
// response was obtained; Duration is always set, failure paths included.
type Outcome struct {
	StatusCode int           `json:"statusCode,omitempty"`
	Valid      bool          `json:"isValid"`
	ErrorKind  ErrorKind     `json:"errorKind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`
	DurationMs int64         `json:"durationMs"`
}

// Finalize stamps the duration fields. Called once, when the probe that
// owns the outcome completes.
func (o *Outcome) Finalize(start time.Time) {
	o.Duration = time.Since(start)
	o.DurationMs = o.Duration.Milliseconds()
}

// ValidatedLink pairs a candidate with its final outcome. Index is the
// candidate's position in the original input; aggregation writes each
// completed link straight into that slot, so two candidates sharing a URL
// still resolve into distinct entries.
type ValidatedLink struct {
	Index     int    `json:"index"`
	Candidate        // embedded: text, url, host
	Outcome          // embedded: status, validity, error, duration
	Timestamp string `json:"timestamp"`
}

// Classify applies the single validity rule used across the engine:
// 200 <= status < 400. A zero (absent) status is never valid.
func Classify(statusCode int) bool {
	return statusCode >= 200 && statusCode < 400
}
