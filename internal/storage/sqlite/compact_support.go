package sqlite

import "context"

// StampCompactedOnce sets compacted_at on id to ts only if it is
// currently zero, per spec.md 4.6/4.7: "stamp on first observed
// disappearance, leave the stamp untouched thereafter."
func (s *Store) StampCompactedOnce(ctx context.Context, id string, ts int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tickets SET compacted_at = ? WHERE id = ? AND compacted_at = 0`, ts, id)
	return wrapErr("sqlite.StampCompactedOnce", err)
}

// DenormalizeReferences copies created_from_name/supersedes_name/
// supersedes_reason onto referers whose target is resolvable and
// whose denormalized field is still empty (spec.md 4.7 step 2).
func (s *Store) DenormalizeReferences(ctx context.Context) error {
	const createdFromSQL = `
UPDATE tickets
SET created_from_name = (
	SELECT name FROM tickets AS src WHERE src.id = tickets.created_from
	UNION ALL
	SELECT name FROM tombstones AS ts WHERE ts.id = tickets.created_from
	LIMIT 1
)
WHERE created_from != '' AND created_from_name = ''
  AND (
	EXISTS (SELECT 1 FROM tickets AS src WHERE src.id = tickets.created_from)
	OR EXISTS (SELECT 1 FROM tombstones AS ts WHERE ts.id = tickets.created_from)
  )
`
	if _, err := s.db.ExecContext(ctx, createdFromSQL); err != nil {
		return wrapErr("sqlite.DenormalizeReferences", err)
	}

	const supersedesSQL = `
UPDATE tickets
SET supersedes_name = (
	SELECT name FROM tickets AS src WHERE src.id = tickets.supersedes
	UNION ALL
	SELECT name FROM tombstones AS ts WHERE ts.id = tickets.supersedes
	LIMIT 1
),
supersedes_reason = (
	SELECT kill_reason FROM tickets AS src WHERE src.id = tickets.supersedes
	LIMIT 1
)
WHERE supersedes != '' AND supersedes_name = ''
  AND (
	EXISTS (SELECT 1 FROM tickets AS src WHERE src.id = tickets.supersedes)
	OR EXISTS (SELECT 1 FROM tombstones AS ts WHERE ts.id = tickets.supersedes)
  )
`
	_, err := s.db.ExecContext(ctx, supersedesSQL)
	return wrapErr("sqlite.DenormalizeReferences", err)
}

// StampTerminalCompactedAt sets compacted_at on every terminal ticket
// that is not protected and whose compacted_at is still zero, using ts
// as the wall clock
// (spec.md 4.7 step 4). protectedIDs are excluded.
func (s *Store) StampTerminalCompactedAt(ctx context.Context, ts int64, protectedIDs map[string]struct{}) (int, error) {
	ids, err := s.queryStrings(ctx, `SELECT id FROM tickets WHERE status >= ? AND compacted_at = 0`, 2)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		if _, protected := protectedIDs[id]; protected {
			continue
		}
		if err := s.StampCompactedOnce(ctx, id, ts); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
