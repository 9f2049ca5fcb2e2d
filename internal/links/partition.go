// File: backend/internal/links/partition.go
package links

// IndexedCandidate carries a candidate together with its original input
// position. The index travels through partitioning and scheduling so the
// aggregator can place results without re-matching by URL.
type IndexedCandidate struct {
	Index     int
	Candidate Candidate
}

// FallbackHost is the bucket for candidates whose host could not be
// derived. They are still probed; they just share one group.
const FallbackHost = ""

// GroupByHost partitions candidates into ordered per-host groups. Within a
// group, candidates keep their relative input order. Pure; no I/O.
func GroupByHost(candidates []Candidate) map[string][]IndexedCandidate {
	groups := make(map[string][]IndexedCandidate)
	for i, c := range candidates {
		host := c.Host
		groups[host] = append(groups[host], IndexedCandidate{Index: i, Candidate: c})
	}
	return groups
}
