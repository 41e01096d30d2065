// Package compact implements spec.md 4.7: sync, denormalize, stamp,
// rewrite. Grounded in the teacher's internal/compact package structure
// (a dedicated compaction package invoked by the façade) though the
// teacher's own compaction is AI-summarization based and semantically
// unrelated; only its git-hash-lookup helper (internal/compact/git.go)
// carries over in spirit, now generalized as internal/gitlog.
package compact

import (
	"context"
	"sort"
	"time"

	"github.com/tixhq/tix/internal/gitlog"
	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/logging"
	"github.com/tixhq/tix/internal/storage/sqlite"
	"github.com/tixhq/tix/internal/sync"
	"github.com/tixhq/tix/internal/types"
)

// Compactor runs the compact pipeline against a store and log file.
type Compactor struct {
	Store   *sqlite.Store
	Run     gitlog.Runner
	LogPath string
	Log     *logging.Logger

	// Now returns the wall clock for stamping; overridable in tests.
	Now func() int64
}

// Result summarizes one compact run.
type Result struct {
	SyncResult       *sync.Result
	Stamped          int
	ProtectedIDs     []string
	PreservedLines   int
	LiveTickets      int
}

// Run executes the five steps of spec.md 4.7.
func (c *Compactor) Run(ctx context.Context) (*Result, error) {
	if c.Log == nil {
		c.Log = logging.New(logging.LevelWarn)
	}
	if c.Now == nil {
		c.Now = func() int64 { return time.Now().Unix() }
	}

	// Step 1: sync, to ensure the cache reflects all of history.
	syncer := &sync.Syncer{Store: c.Store, Run: c.Run, LogPath: c.LogPath, Log: c.Log}
	syncResult, err := syncer.Sync(ctx, "")
	if err != nil {
		return nil, err
	}

	// Step 2: denormalize cross-refs.
	if err := c.Store.DenormalizeReferences(ctx); err != nil {
		return nil, err
	}

	// Step 3: identify uncommitted (protected) resolutions.
	protected, err := c.identifyProtected(ctx)
	if err != nil {
		return nil, err
	}
	protectedSet := make(map[string]struct{}, len(protected))
	for _, id := range protected {
		protectedSet[id] = struct{}{}
	}

	// Step 4: stamp compacted_at on every non-protected terminal ticket.
	stamped, err := c.Store.StampTerminalCompactedAt(ctx, c.Now(), protectedSet)
	if err != nil {
		return nil, err
	}

	// Step 5: rewrite the log.
	plan, err := c.buildRewritePlan(ctx, protectedSet)
	if err != nil {
		return nil, err
	}
	if err := jsonl.Rewrite(c.LogPath, plan); err != nil {
		return nil, err
	}

	return &Result{
		SyncResult:     syncResult,
		Stamped:        stamped,
		ProtectedIDs:   protected,
		PreservedLines: len(plan.Preserved),
		LiveTickets:    len(plan.Owned),
	}, nil
}

// identifyProtected reads the log at git HEAD and determines which
// currently-resolved tickets have no resolution marker there (spec.md
// 4.7 step 3).
func (c *Compactor) identifyProtected(ctx context.Context) ([]string, error) {
	headContent, ok, err := gitlog.ReadAtHEAD(ctx, c.Run, c.LogPath)
	if err != nil {
		return nil, err
	}

	resolvedAtHEAD := make(map[string]struct{})
	if ok {
		lines, warnings, err := jsonl.ReadAllBytes(headContent)
		for _, w := range warnings {
			c.Log.Warnf("compact: HEAD content: %s", w)
		}
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			if !line.Owned {
				continue
			}
			switch line.Rec.T {
			case jsonl.KindAccept, jsonl.KindReject, jsonl.KindDelete:
				resolvedAtHEAD[line.Rec.ID] = struct{}{}
			case jsonl.KindTask, jsonl.KindIssue, jsonl.KindNote:
				if tk, err := jsonl.RecordToTicket(line.Rec); err == nil && tk.Status.Resolved() {
					resolvedAtHEAD[line.Rec.ID] = struct{}{}
				}
			}
		}
	}

	tickets, err := c.Store.AllTickets(ctx)
	if err != nil {
		return nil, err
	}

	var protected []string
	for _, tk := range tickets {
		if !tk.Status.Resolved() {
			continue
		}
		if _, committed := resolvedAtHEAD[tk.ID]; !committed {
			protected = append(protected, tk.ID)
		}
	}
	sort.Strings(protected)
	return protected, nil
}

// buildRewritePlan assembles the preserved block (foreign lines from
// the current working-tree log, byte-identical and in order) plus the
// canonical owned block: live tickets sorted by id, then each
// protected ticket with its matching tombstone or delete marker
// (spec.md 4.2 step 2).
func (c *Compactor) buildRewritePlan(ctx context.Context, protectedSet map[string]struct{}) (*jsonl.RewritePlan, error) {
	currentLines, warnings, err := jsonl.ReadAll(c.LogPath)
	for _, w := range warnings {
		c.Log.Warnf("compact: working log: %s", w)
	}
	if err != nil {
		return nil, err
	}

	plan := &jsonl.RewritePlan{}
	for _, line := range currentLines {
		if !line.Owned {
			plan.Preserved = append(plan.Preserved, line.Raw)
		}
	}

	tickets, err := c.Store.AllTickets(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })

	for _, tk := range tickets {
		if tk.Status == types.StatusPending || tk.Status == types.StatusDone {
			rec, err := jsonl.TicketToRecord(tk)
			if err != nil {
				return nil, err
			}
			plan.Owned = append(plan.Owned, rec)
			continue
		}
		if _, isProtected := protectedSet[tk.ID]; isProtected {
			rec, err := jsonl.TicketToRecord(tk)
			if err != nil {
				return nil, err
			}
			plan.Owned = append(plan.Owned, rec)

			marker, err := c.resolutionMarkerFor(ctx, tk)
			if err != nil {
				return nil, err
			}
			if marker != nil {
				plan.Owned = append(plan.Owned, marker)
			}
		}
	}
	return plan, nil
}

// resolutionMarkerFor reconstructs the accept/reject/delete line that
// matches a protected ticket's current status, so the rewritten log
// still carries its resolution (spec.md 4.2 step 2).
func (c *Compactor) resolutionMarkerFor(ctx context.Context, tk *types.Ticket) (*jsonl.Record, error) {
	switch tk.Status {
	case types.StatusAccepted, types.StatusRejected:
		ts, err := c.Store.GetTombstone(ctx, tk.ID)
		if err != nil {
			return jsonl.DeleteRecord(tk.ID, tk.ResolvedAt), nil
		}
		if ts.IsAccept {
			return jsonl.TombstoneToAcceptRecord(ts), nil
		}
		return jsonl.TombstoneToRejectRecord(ts), nil
	case types.StatusDeleted:
		return jsonl.DeleteRecord(tk.ID, tk.ResolvedAt), nil
	default:
		return nil, nil
	}
}
