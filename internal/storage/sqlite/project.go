package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/tixerr"
	"github.com/tixhq/tix/internal/types"
)

// nowFn is overridable in tests so projector timestamps are deterministic.
var nowFn = func() int64 { return time.Now().Unix() }

// Project applies one decoded log line to the cache idempotently,
// per spec.md 4.4. Unknown discriminators and foreign (non-owned)
// lines are ignored -- tix only materializes the event kinds it owns.
func (s *Store) Project(ctx context.Context, line *jsonl.Line) error {
	if line == nil || !line.Owned {
		return nil
	}
	return s.withConn(ctx, func(conn *sql.Conn) error {
		return s.projectOn(ctx, conn, line.Rec)
	})
}

// projectOn applies one record using an already-open connection,
// used by rebuild/sync to batch many lines in a single transaction.
func (s *Store) projectOn(ctx context.Context, conn *sql.Conn, rec *jsonl.Record) error {
	switch rec.T {
	case jsonl.KindTask, jsonl.KindIssue, jsonl.KindNote:
		tk, err := jsonl.RecordToTicket(rec)
		if err != nil {
			return nil // malformed line: warning, not fatal (spec.md 7)
		}
		return s.upsertTicket(ctx, conn, tk)
	case jsonl.KindAccept:
		return s.applyAccept(ctx, conn, rec)
	case jsonl.KindReject:
		return s.applyReject(ctx, conn, rec)
	case jsonl.KindDelete:
		return s.applyDelete(ctx, conn, rec)
	default:
		return nil
	}
}

func (s *Store) upsertTicket(ctx context.Context, conn *sql.Conn, tk *types.Ticket) error {
	if tk.CreatedAt == 0 {
		tk.CreatedAt = nowFn()
	}
	tk.UpdatedAt = nowFn()

	const q = `
INSERT INTO tickets (
	id, type, status, priority, name, spec, notes, accept, done_at, branch,
	parent, created_from, supersedes, kill_reason,
	created_from_name, supersedes_name, supersedes_reason,
	created_at, updated_at, resolved_at, compacted_at,
	author, completed_at, cost, tokens_in, tokens_out, iterations, model, retries, kill_count
) VALUES (?,?,?,?,?,?,?,?,?,?, ?,?,?,?, ?,?,?, ?,?,?,?, ?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	type=excluded.type, status=excluded.status, priority=excluded.priority,
	name=excluded.name, spec=excluded.spec, notes=excluded.notes, accept=excluded.accept,
	done_at=excluded.done_at, branch=excluded.branch,
	parent=excluded.parent, created_from=excluded.created_from, supersedes=excluded.supersedes,
	kill_reason=excluded.kill_reason,
	created_from_name=CASE WHEN excluded.created_from_name != '' THEN excluded.created_from_name ELSE tickets.created_from_name END,
	supersedes_name=CASE WHEN excluded.supersedes_name != '' THEN excluded.supersedes_name ELSE tickets.supersedes_name END,
	supersedes_reason=CASE WHEN excluded.supersedes_reason != '' THEN excluded.supersedes_reason ELSE tickets.supersedes_reason END,
	updated_at=excluded.updated_at,
	author=excluded.author, completed_at=excluded.completed_at, cost=excluded.cost,
	tokens_in=excluded.tokens_in, tokens_out=excluded.tokens_out, iterations=excluded.iterations,
	model=excluded.model, retries=excluded.retries, kill_count=excluded.kill_count
`
	_, err := conn.ExecContext(ctx, q,
		tk.ID, int(tk.Type), int(tk.Status), int(tk.Priority), tk.Name, tk.Spec, tk.Notes, tk.Accept, tk.DoneAt, tk.Branch,
		tk.Parent, tk.CreatedFrom, tk.Supersedes, tk.KillReason,
		tk.CreatedFromName, tk.SupersedesName, tk.SupersedesReason,
		tk.CreatedAt, tk.UpdatedAt, tk.ResolvedAt, tk.CompactedAt,
		tk.Author, tk.CompletedAt, tk.Cost, tk.TokensIn, tk.TokensOut, tk.Iterations, tk.Model, tk.Retries, tk.KillCount,
	)
	if err != nil {
		return wrapErr("sqlite.upsertTicket", err)
	}

	if err := replaceDeps(ctx, conn, tk.ID, tk.Deps); err != nil {
		return err
	}
	if err := replaceLabels(ctx, conn, tk.ID, tk.Labels); err != nil {
		return err
	}
	if err := replaceMeta(ctx, conn, tk.ID, tk.Meta); err != nil {
		return err
	}
	return reindexKeywords(ctx, conn, tk)
}

func replaceDeps(ctx context.Context, conn *sql.Conn, ticketID string, deps []string) error {
	if _, err := conn.ExecContext(ctx, `DELETE FROM ticket_deps WHERE ticket_id = ?`, ticketID); err != nil {
		return wrapErr("sqlite.replaceDeps", err)
	}
	for _, d := range deps {
		if _, err := conn.ExecContext(ctx, `INSERT OR IGNORE INTO ticket_deps (ticket_id, dep_id) VALUES (?, ?)`, ticketID, d); err != nil {
			return wrapErr("sqlite.replaceDeps", err)
		}
	}
	return nil
}

func replaceLabels(ctx context.Context, conn *sql.Conn, ticketID string, labels []string) error {
	if _, err := conn.ExecContext(ctx, `DELETE FROM ticket_labels WHERE ticket_id = ?`, ticketID); err != nil {
		return wrapErr("sqlite.replaceLabels", err)
	}
	for _, l := range labels {
		if _, err := conn.ExecContext(ctx, `INSERT OR IGNORE INTO ticket_labels (ticket_id, label) VALUES (?, ?)`, ticketID, l); err != nil {
			return wrapErr("sqlite.replaceLabels", err)
		}
	}
	return nil
}

func replaceMeta(ctx context.Context, conn *sql.Conn, ticketID string, meta map[string]types.MetaValue) error {
	if _, err := conn.ExecContext(ctx, `DELETE FROM ticket_meta WHERE ticket_id = ?`, ticketID); err != nil {
		return wrapErr("sqlite.replaceMeta", err)
	}
	for k, v := range meta {
		if v.IsText {
			if _, err := conn.ExecContext(ctx, `INSERT INTO ticket_meta (ticket_id, key, value_text, value_num) VALUES (?,?,?,NULL)`, ticketID, k, v.Text); err != nil {
				return wrapErr("sqlite.replaceMeta", err)
			}
		} else {
			if _, err := conn.ExecContext(ctx, `INSERT INTO ticket_meta (ticket_id, key, value_text, value_num) VALUES (?,?,NULL,?)`, ticketID, k, v.Num); err != nil {
				return wrapErr("sqlite.replaceMeta", err)
			}
		}
	}
	return nil
}

func (s *Store) applyAccept(ctx context.Context, conn *sql.Conn, rec *jsonl.Record) error {
	ts, err := jsonl.RecordToTombstone(rec)
	if err != nil {
		return nil
	}
	if err := upsertTombstone(ctx, conn, ts); err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `UPDATE tickets SET status = ?, resolved_at = ?, updated_at = ? WHERE id = ?`,
		int(types.StatusAccepted), nowFn(), nowFn(), rec.ID)
	return wrapErr("sqlite.applyAccept", err)
}

func (s *Store) applyReject(ctx context.Context, conn *sql.Conn, rec *jsonl.Record) error {
	ts, err := jsonl.RecordToTombstone(rec)
	if err != nil {
		return nil
	}
	if err := upsertTombstone(ctx, conn, ts); err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `UPDATE tickets SET status = ?, done_at = '', updated_at = ? WHERE id = ?`,
		int(types.StatusPending), nowFn(), rec.ID)
	return wrapErr("sqlite.applyReject", err)
}

func (s *Store) applyDelete(ctx context.Context, conn *sql.Conn, rec *jsonl.Record) error {
	ts := rec.Timestamp
	if ts == 0 {
		ts = nowFn()
	}
	_, err := conn.ExecContext(ctx, `UPDATE tickets SET status = ?, resolved_at = ?, updated_at = ? WHERE id = ?`,
		int(types.StatusDeleted), ts, nowFn(), rec.ID)
	return wrapErr("sqlite.applyDelete", err)
}

func upsertTombstone(ctx context.Context, conn *sql.Conn, ts *types.Tombstone) error {
	const q = `
INSERT INTO tombstones (id, done_at, reason, name, is_accept, timestamp)
VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	done_at=excluded.done_at, reason=excluded.reason, name=excluded.name,
	is_accept=excluded.is_accept, timestamp=excluded.timestamp
`
	_, err := conn.ExecContext(ctx, q, ts.ID, ts.DoneAt, ts.Reason, ts.Name, boolToInt(ts.IsAccept), ts.Timestamp)
	return wrapErr("sqlite.upsertTombstone", err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// withConn runs fn on a plain (non-transactional) connection; used
// for single-event projection outside of bulk replay.
func (s *Store) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return tixerr.New(tixerr.KindDB, "sqlite.withConn", "%v", err)
	}
	defer conn.Close()
	return fn(conn)
}
