// Package resolver classifies cross-ticket references against the
// cache, per spec.md 4.8. Grounded in the teacher's dependency-lookup
// helpers (internal/storage/sqlite's former ready.go/blocked_cache.go,
// which queried the cache to classify one id's relationship to the
// rest of the graph); generalized here from "is this dep ready" to
// the three-way resolved/stale/broken classification the new domain
// needs.
package resolver

import (
	"context"

	"github.com/tixhq/tix/internal/storage/sqlite"
)

// Status is one of resolved/stale/broken for a referenced id.
type Status int

const (
	Resolved Status = iota
	Stale
	Broken
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Stale:
		return "stale"
	default:
		return "broken"
	}
}

// Resolve classifies a single id: resolved if a live ticket exists,
// stale if only a tombstone exists, broken otherwise (spec.md 4.8).
func Resolve(ctx context.Context, store *sqlite.Store, id string) (Status, error) {
	if id == "" {
		return Broken, nil
	}
	exists, err := store.TicketExists(ctx, id)
	if err != nil {
		return Broken, err
	}
	if exists {
		return Resolved, nil
	}
	tombstoned, err := store.TombstoneExists(ctx, id)
	if err != nil {
		return Broken, err
	}
	if tombstoned {
		return Stale, nil
	}
	return Broken, nil
}

// Counts tallies resolved/stale/broken outcomes across a batch of ids,
// used by the status report to summarize deps/parent/created_from/
// supersedes health (spec.md 4.8/4.12).
type Counts struct {
	Resolved int
	Stale    int
	Broken   int
}

// Add folds one classification into the running tally.
func (c *Counts) Add(s Status) {
	switch s {
	case Resolved:
		c.Resolved++
	case Stale:
		c.Stale++
	default:
		c.Broken++
	}
}

// ResolveAll classifies every id in ids, returning both the per-id
// classification and the aggregated counts.
func ResolveAll(ctx context.Context, store *sqlite.Store, ids []string) (map[string]Status, Counts, error) {
	results := make(map[string]Status, len(ids))
	var counts Counts
	for _, id := range ids {
		st, err := Resolve(ctx, store, id)
		if err != nil {
			return nil, Counts{}, err
		}
		results[id] = st
		counts.Add(st)
	}
	return results, counts, nil
}
