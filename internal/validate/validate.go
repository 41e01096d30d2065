// Package validate runs the read-only cache integrity checks of
// spec.md 4.11. Grounded in the teacher's migration-invariant and
// dependency-graph tests (the former internal/storage/sqlite's
// migration_invariants_test.go and dependencies_test.go, which
// asserted similar shape/cycle/reference invariants over the cache in
// test form); here promoted into a standalone reusable checker rather
// than a one-off test helper, since spec.md exposes *validate* as a
// first-class command.
package validate

import (
	"context"
	"fmt"

	"github.com/tixhq/tix/internal/storage/sqlite"
	"github.com/tixhq/tix/internal/types"
)

// maxCycleVisited bounds the BFS cycle search per spec.md 4.11/5.
const maxCycleVisited = 128

// Severity classifies a Finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one integrity violation or warning.
type Finding struct {
	Severity Severity
	Code     string
	TicketID string
	Message  string
}

// Report aggregates every finding from one validation run.
type Report struct {
	Findings []Finding
}

// HasErrors reports whether any finding is error-severity.
func (r *Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r *Report) addError(id, code, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Severity: SeverityError, Code: code, TicketID: id, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) addWarning(id, code, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Severity: SeverityWarning, Code: code, TicketID: id, Message: fmt.Sprintf(format, args...)})
}

// Run executes every check of spec.md 4.11 over the cache.
func Run(ctx context.Context, store *sqlite.Store) (*Report, error) {
	tickets, err := store.AllTickets(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*types.Ticket, len(tickets))
	for _, tk := range tickets {
		byID[tk.ID] = tk
	}

	report := &Report{}
	for _, tk := range tickets {
		checkIDFormat(report, tk)
		checkDoneAt(report, tk)
		checkDuplicateDeps(report, tk)
		if err := checkDepsExistAsTasks(ctx, report, store, tk); err != nil {
			return nil, err
		}
		if err := checkCrossRef(ctx, report, store, tk, "parent", tk.Parent); err != nil {
			return nil, err
		}
		if err := checkCrossRef(ctx, report, store, tk, "created_from", tk.CreatedFrom); err != nil {
			return nil, err
		}
		if err := checkCrossRef(ctx, report, store, tk, "supersedes", tk.Supersedes); err != nil {
			return nil, err
		}
		checkWarnings(report, tk)
	}

	checkAcyclic(report, byID)

	return report, nil
}

func checkIDFormat(report *Report, tk *types.Ticket) {
	if !types.IDPattern.MatchString(tk.ID) {
		report.addError(tk.ID, "bad-id-format", "id %q does not match %s", tk.ID, types.IDPattern.String())
	}
}

func checkDoneAt(report *Report, tk *types.Ticket) {
	if tk.Type == types.TypeTask && tk.Status == types.StatusDone && tk.DoneAt == "" {
		report.addError(tk.ID, "missing-done-at", "done task has empty done_at")
	}
}

func checkDuplicateDeps(report *Report, tk *types.Ticket) {
	seen := make(map[string]struct{}, len(tk.Deps))
	for _, d := range tk.Deps {
		if _, dup := seen[d]; dup {
			report.addError(tk.ID, "duplicate-dep", "dep %q listed more than once", d)
			continue
		}
		seen[d] = struct{}{}
	}
}

func checkDepsExistAsTasks(ctx context.Context, report *Report, store *sqlite.Store, tk *types.Ticket) error {
	for _, depID := range tk.Deps {
		dep, err := store.GetTicket(ctx, depID)
		if err != nil {
			report.addError(tk.ID, "dep-not-found", "dep %q does not reference an existing ticket", depID)
			continue
		}
		if dep.Type != types.TypeTask {
			report.addError(tk.ID, "dep-not-task", "dep %q references a %s, not a task", depID, dep.Type.String())
		}
	}
	return nil
}

// checkCrossRef validates a parent/created_from/supersedes reference:
// missing entirely is an error, resolving only to a tombstone is a
// warning (spec.md 4.11: "tombstone references ... surface as
// warnings at the resolver").
func checkCrossRef(ctx context.Context, report *Report, store *sqlite.Store, tk *types.Ticket, field, target string) error {
	if target == "" {
		return nil
	}
	exists, err := store.TicketExists(ctx, target)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	tombstoned, err := store.TombstoneExists(ctx, target)
	if err != nil {
		return err
	}
	if tombstoned {
		report.addWarning(tk.ID, "stale-"+field, "%s %q resolves to a tombstone, not a live ticket", field, target)
		return nil
	}
	report.addError(tk.ID, "broken-"+field, "%s %q does not reference any known ticket", field, target)
	return nil
}

func checkWarnings(report *Report, tk *types.Ticket) {
	if tk.Name == "" {
		report.addWarning(tk.ID, "missing-name", "ticket has no name")
	}
	if tk.Type == types.TypeTask && tk.Accept == "" {
		report.addWarning(tk.ID, "missing-accept", "task has no acceptance criteria")
	}
}

// checkAcyclic runs a bounded BFS from every ticket through its deps,
// reporting a cycle if a BFS from id revisits id within
// maxCycleVisited nodes (spec.md 4.11).
func checkAcyclic(report *Report, byID map[string]*types.Ticket) {
	reported := make(map[string]struct{})
	for startID := range byID {
		if _, already := reported[startID]; already {
			continue
		}
		if cyclePath, found := bfsFindCycle(startID, byID); found {
			for _, id := range cyclePath {
				reported[id] = struct{}{}
			}
			report.addError(startID, "dep-cycle", "dependency cycle detected: %v", cyclePath)
		}
	}
}

func bfsFindCycle(start string, byID map[string]*types.Ticket) ([]string, bool) {
	type queued struct {
		id   string
		path []string
	}
	visited := map[string]struct{}{start: {}}
	queue := []queued{{id: start, path: []string{start}}}
	visitedCount := 0

	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]

		tk, ok := byID[head.id]
		if !ok {
			continue
		}
		for _, dep := range tk.Deps {
			if dep == start {
				return append(append([]string{}, head.path...), dep), true
			}
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			visitedCount++
			if visitedCount >= maxCycleVisited {
				return nil, false
			}
			queue = append(queue, queued{id: dep, path: append(append([]string{}, head.path...), dep)})
		}
	}
	return nil, false
}
