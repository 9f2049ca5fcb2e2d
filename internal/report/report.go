// File: backend/internal/report/report.go
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/linkflowhq/linkflow/backend/internal/links"
)

const (
	ValidLinksFilename   = "valid_links.txt"
	InvalidLinksFilename = "invalid_links.txt"
	ResultsJSONFilename  = "results.json"
)

// Summary partitions a finished run for presentation. Order within each
// partition follows the original input order.
type Summary struct {
	Valid   []links.ValidatedLink
	Invalid []links.ValidatedLink
	Elapsed time.Duration
}

func Summarize(results []links.ValidatedLink, elapsed time.Duration) Summary {
	s := Summary{Elapsed: elapsed}
	for _, vl := range results {
		if vl.Valid {
			s.Valid = append(s.Valid, vl)
		} else {
			s.Invalid = append(s.Invalid, vl)
		}
	}
	return s
}

// WriteConsole prints the run summary, showing at most previewLimit
// entries per section with a trailing count for the rest.
func (s Summary) WriteConsole(w io.Writer, previewLimit int) {
	total := len(s.Valid) + len(s.Invalid)
	fmt.Fprintf(w, "Checked %d links in %s", total, s.Elapsed.Round(10*time.Millisecond))
	if s.Elapsed > 0 {
		fmt.Fprintf(w, " (%.1f links/sec)", float64(total)/s.Elapsed.Seconds())
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\nVALID (200-399): %d\n", len(s.Valid))
	for i, vl := range s.Valid {
		if i >= previewLimit {
			fmt.Fprintf(w, "... and %d more valid links\n", len(s.Valid)-previewLimit)
			break
		}
		fmt.Fprintf(w, "%3d. %s\n     -> %s [%d, %dms]\n", i+1, vl.Text, vl.URL, vl.StatusCode, vl.DurationMs)
	}

	fmt.Fprintf(w, "\nINVALID: %d\n", len(s.Invalid))
	for i, vl := range s.Invalid {
		if i >= previewLimit {
			fmt.Fprintf(w, "... and %d more invalid links\n", len(s.Invalid)-previewLimit)
			break
		}
		fmt.Fprintf(w, "%3d. %s\n     -> %s [%s, %dms]\n", i+1, vl.Text, vl.URL, statusLabel(vl), vl.DurationMs)
	}
}

// ExportText writes the two plain-text exports into dir, one line per
// link, failures annotated with their error kind.
func (s Summary) ExportText(dir string) (validPath, invalidPath string, err error) {
	validPath = filepath.Join(dir, ValidLinksFilename)
	invalidPath = filepath.Join(dir, InvalidLinksFilename)

	validFile, err := os.Create(validPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", validPath, err)
	}
	defer validFile.Close()
	for _, vl := range s.Valid {
		fmt.Fprintf(validFile, "%s | %s | %d | %dms\n", vl.Text, vl.URL, vl.StatusCode, vl.DurationMs)
	}

	invalidFile, err := os.Create(invalidPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create %s: %w", invalidPath, err)
	}
	defer invalidFile.Close()
	for _, vl := range s.Invalid {
		fmt.Fprintf(invalidFile, "%s | %s | %s | %s | %dms\n", vl.Text, vl.URL, statusLabel(vl), vl.Error, vl.DurationMs)
	}
	return validPath, invalidPath, nil
}

// ExportJSON writes the full ordered result set.
func ExportJSON(path string, results []links.ValidatedLink) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write results to '%s': %w", path, err)
	}
	return nil
}

func statusLabel(vl links.ValidatedLink) string {
	if vl.StatusCode > 0 {
		return fmt.Sprintf("%d", vl.StatusCode)
	}
	if vl.ErrorKind != links.ErrKindNone {
		return string(vl.ErrorKind)
	}
	return "ERR"
}
