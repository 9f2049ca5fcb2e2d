// File: backend/internal/scheduler/aggregator.go
package scheduler

import "github.com/linkflowhq/linkflow/backend/internal/links"

// Aggregator merges the unordered stream of completed probes back into
// original input order. Placement is a direct write into the slot carried
// by each link's index, so candidates sharing a URL land in their own
// entries and nothing is dropped or duplicated.
type Aggregator struct {
	results []links.ValidatedLink
	seen    int
}

func NewAggregator(n int) *Aggregator {
	return &Aggregator{results: make([]links.ValidatedLink, n)}
}

// Record places one completed link. Out-of-range indices are ignored;
// they cannot occur for items produced by this engine.
func (a *Aggregator) Record(vl links.ValidatedLink) {
	if vl.Index < 0 || vl.Index >= len(a.results) {
		return
	}
	a.results[vl.Index] = vl
	a.seen++
}

// Complete reports whether every input slot has been resolved.
func (a *Aggregator) Complete() bool { return a.seen == len(a.results) }

// Results returns the order-preserved output, one entry per input slot.
func (a *Aggregator) Results() []links.ValidatedLink { return a.results }
