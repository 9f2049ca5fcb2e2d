// File: backend/internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/linkflowhq/linkflow/backend/internal/config"
	"github.com/linkflowhq/linkflow/backend/internal/links"
)

// ErrNoCandidates is returned for a run with zero input links; there is
// nothing to validate, which callers surface explicitly rather than as an
// empty report.
var ErrNoCandidates = errors.New("no candidates to validate")

// URLProber is the single-URL check the scheduler drives. Implementations
// must resolve every failure into the outcome and be safe for concurrent
// use with a shared client.
type URLProber interface {
	Probe(ctx context.Context, client *http.Client, rawURL string) links.Outcome
}

// HostPreflight optionally screens hosts before any HTTP probe is sent.
// It returns an error per host that failed resolution; those hosts' links
// are resolved as network failures without touching the pool.
type HostPreflight interface {
	ResolveHosts(ctx context.Context, hosts []string) map[string]error
}

// Scheduler runs one validation batch: it partitions candidates by host,
// drives every host group concurrently in fixed-size batches, and bounds
// in-flight probes with a global cap and a per-host cap. A fresh
// connection pool is built for each run and discarded afterwards.
type Scheduler struct {
	cfg       config.SchedulerConfig
	proberCfg config.ProberConfig
	prober    URLProber
	preflight HostPreflight // nil disables DNS screening
}

func New(cfg config.SchedulerConfig, proberCfg config.ProberConfig, p URLProber, preflight HostPreflight) *Scheduler {
	return &Scheduler{cfg: cfg, proberCfg: proberCfg, prober: p, preflight: preflight}
}

// Run validates all candidates and returns the results in input order,
// one entry per candidate, failures included. A cancelled run returns
// (nil, ctx.Err()): partial output is never handed out.
func (s *Scheduler) Run(ctx context.Context, candidates []links.Candidate) ([]links.ValidatedLink, error) {
	events, wait, err := s.RunStream(ctx, candidates)
	if err != nil {
		return nil, err
	}
	agg := NewAggregator(len(candidates))
	for vl := range events {
		agg.Record(vl)
	}
	if err := wait(); err != nil {
		return nil, err
	}
	return agg.Results(), nil
}

// RunStream starts a run and exposes completed links as they resolve, in
// completion order. The channel closes when every host stream has
// finished or the run is cancelled; wait reports the run error after the
// channel closes.
func (s *Scheduler) RunStream(ctx context.Context, candidates []links.Candidate) (<-chan links.ValidatedLink, func() error, error) {
	if len(candidates) == 0 {
		return nil, nil, ErrNoCandidates
	}

	runID := uuid.NewString()[:8]
	groups := links.GroupByHost(candidates)
	log.Printf("Scheduler: Run %s: %d links across %d hosts (global cap %d, per-host cap %d, batch %d)",
		runID, len(candidates), len(groups), s.cfg.GlobalConcurrency, s.cfg.PerHostConcurrency, s.cfg.BatchSize)

	var unreachable map[string]error
	if s.preflight != nil {
		hosts := make([]string, 0, len(groups))
		for host := range groups {
			if host != links.FallbackHost {
				hosts = append(hosts, host)
			}
		}
		unreachable = s.preflight.ResolveHosts(ctx, hosts)
		if len(unreachable) > 0 {
			log.Printf("Scheduler: Run %s: DNS preflight failed for %d of %d hosts", runID, len(unreachable), len(hosts))
		}
	}

	client := newPool(s.proberCfg, s.cfg)
	// Buffered to the run size so probe goroutines never block on a slow
	// consumer while holding semaphore slots.
	events := make(chan links.ValidatedLink, len(candidates))
	globalSem := make(chan struct{}, s.cfg.GlobalConcurrency)

	g, gctx := errgroup.WithContext(ctx)
	for host, items := range groups {
		if dnsErr, skip := unreachable[host]; skip {
			s.failHostGroup(items, dnsErr, events)
			continue
		}
		host, items := host, items
		g.Go(func() error {
			return s.runHostStream(gctx, runID, host, items, client, globalSem, events)
		})
	}

	done := make(chan error, 1)
	go func() {
		err := g.Wait()
		if tr, ok := client.Transport.(*http.Transport); ok {
			tr.CloseIdleConnections()
		}
		close(events)
		done <- err
	}()

	wait := func() error { return <-done }
	return events, wait, nil
}

// runHostStream processes one host's candidates in fixed-size batches.
// Every batch is a barrier: all of its probes resolve (success or
// failure) before the inter-batch pause and the next batch. Individual
// probe failures are data, not errors; only cancellation stops a stream.
func (s *Scheduler) runHostStream(
	ctx context.Context,
	runID, host string,
	items []links.IndexedCandidate,
	client *http.Client,
	globalSem chan struct{},
	events chan<- links.ValidatedLink,
) error {
	hostSem := make(chan struct{}, s.cfg.PerHostConcurrency)
	var limiter *rate.Limiter
	if s.cfg.PerHostRateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.PerHostRateRPS), s.cfg.PerHostRateBurst)
	}

	for batchStart := 0; batchStart < len(items); batchStart += s.cfg.BatchSize {
		batchEnd := batchStart + s.cfg.BatchSize
		if batchEnd > len(items) {
			batchEnd = len(items)
		}
		batch := items[batchStart:batchEnd]

		var wg sync.WaitGroup
		for _, item := range batch {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					wg.Wait()
					return err
				}
			}
			select {
			case globalSem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			}
			select {
			case hostSem <- struct{}{}:
			case <-ctx.Done():
				<-globalSem
				wg.Wait()
				return ctx.Err()
			}

			wg.Add(1)
			go func(item links.IndexedCandidate) {
				defer wg.Done()
				defer func() { <-hostSem; <-globalSem }()
				outcome := s.prober.Probe(ctx, client, item.Candidate.URL)
				events <- links.ValidatedLink{
					Index:     item.Index,
					Candidate: item.Candidate,
					Outcome:   outcome,
					Timestamp: time.Now().Format(time.RFC3339),
				}
			}(item)
		}
		wg.Wait() // batch barrier

		if batchEnd < len(items) {
			select {
			case <-time.After(s.cfg.InterBatchPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	log.Printf("Scheduler: Run %s: host '%s' completed %d links", runID, hostLabel(host), len(items))
	return nil
}

// failHostGroup resolves an entire host group as network failures without
// probing, used when DNS preflight rules the host out.
func (s *Scheduler) failHostGroup(items []links.IndexedCandidate, dnsErr error, events chan<- links.ValidatedLink) {
	for _, item := range items {
		start := time.Now()
		outcome := links.Outcome{
			ErrorKind: links.ErrKindNetwork,
			Error:     "dns preflight: " + dnsErr.Error(),
		}
		outcome.Finalize(start)
		events <- links.ValidatedLink{
			Index:     item.Index,
			Candidate: item.Candidate,
			Outcome:   outcome,
			Timestamp: time.Now().Format(time.RFC3339),
		}
	}
}

func hostLabel(host string) string {
	if host == links.FallbackHost {
		return "<no-host>"
	}
	return host
}
