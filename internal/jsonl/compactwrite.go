package jsonl

import (
	"bytes"

	"github.com/natefinch/atomic"

	"github.com/tixhq/tix/internal/tixerr"
)

// RewritePlan is the two-phase content for a compaction rewrite,
// spec.md 4.2: the preserved non-owned lines first, then the
// canonical owned lines (live tickets sorted by id, followed by
// protected-resolved tickets and their tombstone/delete markers).
type RewritePlan struct {
	Preserved [][]byte
	Owned     []*Record
}

// Render produces the final byte content of the rewritten log.
func (p *RewritePlan) Render() ([]byte, error) {
	var buf bytes.Buffer
	for _, raw := range p.Preserved {
		buf.Write(raw)
		buf.WriteByte('\n')
	}
	for _, rec := range p.Owned {
		b, err := EncodeRecord(rec)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Rewrite atomically replaces the log at path with the plan's
// content. It regenerates the content into a temp file and renames it
// over the log (github.com/natefinch/atomic), so a process killed
// mid-rewrite leaves either the old log or the new one intact, never
// a half-written file — the rewrite-path analogue of spec.md 4.2's
// "a failed append must leave the log unchanged".
func Rewrite(path string, plan *RewritePlan) error {
	content, err := plan.Render()
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(content)); err != nil {
		return tixerr.New(tixerr.KindIO, "jsonl.Rewrite", "%v", err)
	}
	return nil
}
