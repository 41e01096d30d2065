// Package lintlog runs read-only hygiene checks over the raw event
// log, independent of the cache. Adapted from the teacher's
// internal/jsonl cleaner.go (duplicate-ID and broken-reference
// detection), narrowed from a mutating clean pass into a reporting-only
// one: SPEC_FULL.md 4.0c restores this as a supplemental `tix
// lint-log` operation that must not alter compaction's committed
// semantics (spec.md 4.7), so nothing here writes back to the log.
package lintlog

import (
	"github.com/tixhq/tix/internal/jsonl"
)

// DuplicateID records one id that appears as more than one task/
// issue/note line in the raw log, keeping the newest by updated_at
// (the teacher's deduplicateIssues tie-break) as the surviving copy.
type DuplicateID struct {
	ID            string
	Occurrences   int
	KeptUpdatedAt int64
}

// BrokenDep records one ticket whose deps[] references an id that
// never appears as a task/issue/note line anywhere in the raw log.
type BrokenDep struct {
	TicketID string
	DepID    string
}

// Report is the read-only result of one lint-log run.
type Report struct {
	Duplicates []DuplicateID
	Broken     []BrokenDep
}

// HasFindings reports whether anything was flagged.
func (r *Report) HasFindings() bool {
	return len(r.Duplicates) > 0 || len(r.Broken) > 0
}

// Run scans every owned task/issue/note line in lines -- the raw log,
// not the cache -- and reports duplicate ids and dangling deps without
// mutating anything.
func Run(lines []*jsonl.Line) *Report {
	latest := make(map[string]*jsonl.Record)
	occurrences := make(map[string]int)
	var order []string

	for _, line := range lines {
		if !line.Owned {
			continue
		}
		switch line.Rec.T {
		case jsonl.KindTask, jsonl.KindIssue, jsonl.KindNote:
			id := line.Rec.ID
			if _, seen := latest[id]; !seen {
				order = append(order, id)
			}
			occurrences[id]++
			if cur, ok := latest[id]; !ok || line.Rec.UpdatedAt >= cur.UpdatedAt {
				latest[id] = line.Rec
			}
		}
	}

	report := &Report{}
	for _, id := range order {
		if occurrences[id] > 1 {
			report.Duplicates = append(report.Duplicates, DuplicateID{
				ID:            id,
				Occurrences:   occurrences[id],
				KeptUpdatedAt: latest[id].UpdatedAt,
			})
		}
	}

	for _, id := range order {
		rec := latest[id]
		for _, dep := range rec.Deps {
			if _, exists := latest[dep]; !exists {
				report.Broken = append(report.Broken, BrokenDep{TicketID: id, DepID: dep})
			}
		}
	}

	return report
}
