// File: backend/internal/prober/prober_test.go
package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkflowhq/linkflow/backend/internal/config"
	"github.com/linkflowhq/linkflow/backend/internal/links"
)

func testProberConfig() config.ProberConfig {
	return config.ProberConfig{
		ConnectTimeout: 1 * time.Second,
		ProbeTimeout:   2 * time.Second,
		MaxRedirects:   7,
		UserAgent:      "linkflow-test/1.0",
	}
}

func TestProbeHeadOK(t *testing.T) {
	var headCount, getCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			atomic.AddInt32(&headCount, 1)
		case http.MethodGet:
			atomic.AddInt32(&getCount, 1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(testProberConfig())
	outcome := p.Probe(context.Background(), srv.Client(), srv.URL)

	assert.Equal(t, http.StatusOK, outcome.StatusCode)
	assert.True(t, outcome.Valid)
	assert.Equal(t, links.ErrKindNone, outcome.ErrorKind)
	assert.Empty(t, outcome.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&headCount))
	assert.Equal(t, int32(0), atomic.LoadInt32(&getCount), "no GET may be sent when HEAD succeeds")
}

func TestProbeHeadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(testProberConfig())
	outcome := p.Probe(context.Background(), srv.Client(), srv.URL)

	assert.Equal(t, http.StatusNotFound, outcome.StatusCode)
	assert.False(t, outcome.Valid)
	assert.Equal(t, links.ErrKindNone, outcome.ErrorKind, "a received status is not a transport error")
}

func TestProbeFallbackGetAfter405(t *testing.T) {
	var getCount int32
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		atomic.AddInt32(&getCount, 1)
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(testProberConfig())
	outcome := p.Probe(context.Background(), srv.Client(), srv.URL)

	assert.Equal(t, http.StatusOK, outcome.StatusCode)
	assert.True(t, outcome.Valid)
	assert.Equal(t, int32(1), atomic.LoadInt32(&getCount), "exactly one GET retry after 405")
	assert.Equal(t, "bytes=0-1023", gotRange)
}

func TestProbeFallbackGetStillFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := New(testProberConfig())
	outcome := p.Probe(context.Background(), srv.Client(), srv.URL)

	assert.Equal(t, http.StatusForbidden, outcome.StatusCode, "fallback outcome replaces the 405")
	assert.False(t, outcome.Valid)
}

func TestProbeNoFallbackForOther4xx(t *testing.T) {
	var getCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&getCount, 1)
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := New(testProberConfig())
	outcome := p.Probe(context.Background(), srv.Client(), srv.URL)

	assert.Equal(t, http.StatusTooManyRequests, outcome.StatusCode)
	assert.Equal(t, int32(0), atomic.LoadInt32(&getCount), "only 405 triggers the GET retry")
}

func TestProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := testProberConfig()
	cfg.ProbeTimeout = 200 * time.Millisecond
	p := New(cfg)

	start := time.Now()
	outcome := p.Probe(context.Background(), srv.Client(), srv.URL)

	assert.Equal(t, links.ErrKindTimeout, outcome.ErrorKind)
	assert.Equal(t, 0, outcome.StatusCode)
	assert.False(t, outcome.Valid)
	assert.Less(t, time.Since(start), 2*time.Second, "timeout must bound the probe")
	assert.Greater(t, outcome.DurationMs, int64(0))
}

func TestProbeDurationRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		if r.Method == http.MethodHead && r.URL.Path == "/fallback" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(testProberConfig())

	outcome := p.Probe(context.Background(), srv.Client(), srv.URL)
	assert.True(t, outcome.Valid)
	assert.Greater(t, outcome.Duration, time.Duration(0), "duration must be stamped on the returned outcome")
	assert.GreaterOrEqual(t, outcome.DurationMs, int64(25))

	outcome = p.Probe(context.Background(), srv.Client(), srv.URL+"/fallback")
	assert.True(t, outcome.Valid)
	assert.GreaterOrEqual(t, outcome.DurationMs, int64(50), "duration must span HEAD and the GET retry")
}

func TestProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := srv.URL
	srv.Close() // nothing listens here anymore

	p := New(testProberConfig())
	outcome := p.Probe(context.Background(), http.DefaultClient, deadURL)

	assert.Equal(t, links.ErrKindNetwork, outcome.ErrorKind)
	assert.Equal(t, 0, outcome.StatusCode)
	assert.False(t, outcome.Valid)
	assert.NotEmpty(t, outcome.Error)
	assert.Greater(t, outcome.Duration, time.Duration(0), "failure paths carry a duration too")
}

func TestProbeRedirectCapSalvagesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/next", http.StatusFound) // redirects forever
	}))
	defer srv.Close()

	maxRedirects := 3
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return assert.AnError
			}
			return nil
		},
	}

	p := New(testProberConfig())
	outcome := p.Probe(context.Background(), client, srv.URL)

	require.Equal(t, links.ErrKindHTTPStatus, outcome.ErrorKind)
	assert.Equal(t, http.StatusFound, outcome.StatusCode, "last response's status survives the redirect cap")
	assert.True(t, outcome.Valid, "3xx classifies as valid even when the chain is cut")
	assert.NotEmpty(t, outcome.Error)
}

func TestProbeInvalidURL(t *testing.T) {
	p := New(testProberConfig())
	outcome := p.Probe(context.Background(), http.DefaultClient, "http://[::1]:namedport")

	// Parse failures surface as *url.Error and classify as network.
	assert.Equal(t, links.ErrKindNetwork, outcome.ErrorKind)
	assert.Equal(t, 0, outcome.StatusCode)
	assert.False(t, outcome.Valid)
}
