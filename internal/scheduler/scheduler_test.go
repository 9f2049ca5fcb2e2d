// File: backend/internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkflowhq/linkflow/backend/internal/config"
	"github.com/linkflowhq/linkflow/backend/internal/links"
)

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		GlobalConcurrency:  100,
		PerHostConcurrency: 15,
		BatchSize:          15,
		InterBatchPause:    time.Millisecond,
	}
}

func testProberConfig() config.ProberConfig {
	return config.ProberConfig{
		ConnectTimeout: time.Second,
		ProbeTimeout:   time.Second,
		MaxRedirects:   7,
		UserAgent:      "linkflow-test/1.0",
	}
}

// fakeProber resolves probes without any network and tracks in-flight
// concurrency, overall and per host.
type fakeProber struct {
	delay   time.Duration
	outcome func(rawURL string) links.Outcome

	mu           sync.Mutex
	inflight     int
	maxInflight  int
	hostInflight map[string]int
	maxPerHost   map[string]int
	probed       []string
}

func newFakeProber(delay time.Duration, outcome func(string) links.Outcome) *fakeProber {
	if outcome == nil {
		outcome = func(string) links.Outcome {
			return links.Outcome{StatusCode: http.StatusOK, Valid: true}
		}
	}
	return &fakeProber{
		delay:        delay,
		outcome:      outcome,
		hostInflight: make(map[string]int),
		maxPerHost:   make(map[string]int),
	}
}

func (f *fakeProber) Probe(ctx context.Context, client *http.Client, rawURL string) links.Outcome {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.hostInflight[host]++
	if f.hostInflight[host] > f.maxPerHost[host] {
		f.maxPerHost[host] = f.hostInflight[host]
	}
	f.probed = append(f.probed, rawURL)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.inflight--
	f.hostInflight[host]--
	f.mu.Unlock()

	out := f.outcome(rawURL)
	out.Finalize(time.Now())
	return out
}

func makeCandidates(host string, n int) []links.Candidate {
	out := make([]links.Candidate, n)
	for i := range out {
		out[i] = links.Candidate{
			Text: fmt.Sprintf("%s link %d", host, i),
			URL:  fmt.Sprintf("https://%s/page-%d", host, i),
			Host: host,
		}
	}
	return out
}

func TestRunCompletenessAndOrder(t *testing.T) {
	var candidates []links.Candidate
	candidates = append(candidates, makeCandidates("a.example", 20)...)
	candidates = append(candidates, makeCandidates("b.example", 7)...)
	candidates = append(candidates, makeCandidates("c.example", 1)...)

	s := New(testSchedulerConfig(), testProberConfig(), newFakeProber(0, nil), nil)
	results, err := s.Run(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, results, len(candidates))

	for i, vl := range results {
		assert.Equal(t, i, vl.Index)
		assert.Equal(t, candidates[i].URL, vl.URL, "slot %d must hold input %d", i, i)
		assert.True(t, vl.Valid)
		assert.NotEmpty(t, vl.Timestamp)
	}
}

func TestRunDuplicateURLsGetDistinctSlots(t *testing.T) {
	dup := links.Candidate{Text: "dup", URL: "https://a.example/same", Host: "a.example"}
	candidates := []links.Candidate{dup, {Text: "other", URL: "https://a.example/other", Host: "a.example"}, dup}

	s := New(testSchedulerConfig(), testProberConfig(), newFakeProber(0, nil), nil)
	results, err := s.Run(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "https://a.example/same", results[0].URL)
	assert.Equal(t, "https://a.example/same", results[2].URL)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, 2, results[2].Index)
}

func TestRunGlobalConcurrencyBound(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.GlobalConcurrency = 5
	cfg.PerHostConcurrency = 5
	cfg.BatchSize = 50

	var candidates []links.Candidate
	for h := 0; h < 8; h++ {
		candidates = append(candidates, makeCandidates(fmt.Sprintf("host-%d.example", h), 6)...)
	}

	fp := newFakeProber(10*time.Millisecond, nil)
	s := New(cfg, testProberConfig(), fp, nil)
	_, err := s.Run(context.Background(), candidates)
	require.NoError(t, err)

	assert.LessOrEqual(t, fp.maxInflight, cfg.GlobalConcurrency,
		"in-flight probes must never exceed the global cap")
}

func TestRunPerHostConcurrencyBound(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.PerHostConcurrency = 3
	cfg.BatchSize = 10

	candidates := makeCandidates("one.example", 30)

	fp := newFakeProber(5*time.Millisecond, nil)
	s := New(cfg, testProberConfig(), fp, nil)
	_, err := s.Run(context.Background(), candidates)
	require.NoError(t, err)

	assert.LessOrEqual(t, fp.maxPerHost["one.example"], cfg.PerHostConcurrency,
		"in-flight probes for a host must never exceed the per-host cap")
}

func TestRunFailureIsolation(t *testing.T) {
	outcome := func(rawURL string) links.Outcome {
		if strings.Contains(rawURL, "page-1") {
			return links.Outcome{ErrorKind: links.ErrKindTimeout, Error: "request timed out"}
		}
		return links.Outcome{StatusCode: http.StatusOK, Valid: true}
	}
	candidates := makeCandidates("a.example", 5)

	s := New(testSchedulerConfig(), testProberConfig(), newFakeProber(0, outcome), nil)
	results, err := s.Run(context.Background(), candidates)
	require.NoError(t, err, "a failed probe is data, not a run error")
	require.Len(t, results, 5)

	assert.Equal(t, links.ErrKindTimeout, results[1].ErrorKind)
	for _, i := range []int{0, 2, 3, 4} {
		assert.True(t, results[i].Valid, "slot %d should be unaffected by slot 1's failure", i)
	}
}

func TestRunNoCandidates(t *testing.T) {
	s := New(testSchedulerConfig(), testProberConfig(), newFakeProber(0, nil), nil)

	results, err := s.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Nil(t, results)
}

func TestRunCancellation(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.BatchSize = 2
	cfg.InterBatchPause = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var probeCount int32
	outcome := func(string) links.Outcome {
		if atomic.AddInt32(&probeCount, 1) == 2 {
			cancel()
		}
		return links.Outcome{StatusCode: http.StatusOK, Valid: true}
	}

	candidates := makeCandidates("a.example", 20)
	s := New(cfg, testProberConfig(), newFakeProber(5*time.Millisecond, outcome), nil)

	results, err := s.Run(ctx, candidates)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results, "a cancelled run hands out no partial results")
	assert.Less(t, atomic.LoadInt32(&probeCount), int32(20), "remaining probes must not all run after cancel")
}

func TestRunStreamDeliversEveryIndexOnce(t *testing.T) {
	candidates := makeCandidates("a.example", 12)
	s := New(testSchedulerConfig(), testProberConfig(), newFakeProber(time.Millisecond, nil), nil)

	events, wait, err := s.RunStream(context.Background(), candidates)
	require.NoError(t, err)

	seen := make(map[int]int)
	for vl := range events {
		seen[vl.Index]++
	}
	require.NoError(t, wait())

	require.Len(t, seen, 12)
	for i := 0; i < 12; i++ {
		assert.Equal(t, 1, seen[i], "index %d must be delivered exactly once", i)
	}
}

func TestRunDNSPreflightFailsHostGroup(t *testing.T) {
	var candidates []links.Candidate
	candidates = append(candidates, makeCandidates("dead.example", 3)...)
	candidates = append(candidates, makeCandidates("live.example", 3)...)

	preflight := stubPreflight{failures: map[string]error{"dead.example": errors.New("no such host")}}
	fp := newFakeProber(0, nil)
	s := New(testSchedulerConfig(), testProberConfig(), fp, preflight)

	results, err := s.Run(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, results, 6)

	for i := 0; i < 3; i++ {
		assert.Equal(t, links.ErrKindNetwork, results[i].ErrorKind)
		assert.Contains(t, results[i].Error, "dns preflight")
		assert.False(t, results[i].Valid)
	}
	for i := 3; i < 6; i++ {
		assert.True(t, results[i].Valid)
	}
	for _, probed := range fp.probed {
		assert.NotContains(t, probed, "dead.example", "screened hosts must not be probed")
	}
}

type stubPreflight struct {
	failures map[string]error
}

func (s stubPreflight) ResolveHosts(ctx context.Context, hosts []string) map[string]error {
	return s.failures
}

func TestAggregator(t *testing.T) {
	agg := NewAggregator(3)
	assert.False(t, agg.Complete())

	agg.Record(links.ValidatedLink{Index: 2, Candidate: links.Candidate{URL: "c"}})
	agg.Record(links.ValidatedLink{Index: 0, Candidate: links.Candidate{URL: "a"}})
	assert.False(t, agg.Complete())
	agg.Record(links.ValidatedLink{Index: 1, Candidate: links.Candidate{URL: "b"}})
	assert.True(t, agg.Complete())

	results := agg.Results()
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].URL)
	assert.Equal(t, "b", results[1].URL)
	assert.Equal(t, "c", results[2].URL)
}

func TestAggregatorIgnoresOutOfRange(t *testing.T) {
	agg := NewAggregator(1)
	agg.Record(links.ValidatedLink{Index: 5})
	agg.Record(links.ValidatedLink{Index: -1})
	assert.False(t, agg.Complete())
}
