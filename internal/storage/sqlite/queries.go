package sqlite

import (
	"context"
	"database/sql"

	"github.com/tixhq/tix/internal/types"
)

// GetTicket fetches a single ticket by id, including its deps, labels,
// and meta, or ErrNotFound if absent.
func (s *Store) GetTicket(ctx context.Context, id string) (*types.Ticket, error) {
	tk, err := scanTicketRow(s.db.QueryRowContext(ctx, ticketSelectSQL+` WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr("sqlite.GetTicket", err)
	}
	if err := s.loadAssociations(ctx, tk); err != nil {
		return nil, err
	}
	return tk, nil
}

// TicketExists reports whether a live ticket (status pending or done,
// spec.md 4.8/glossary) exists with the given id. Accepted and
// rejected tickets are tombstoned, not live; deleted tickets are
// neither -- the reference resolver falls through to TombstoneExists
// to tell those two apart.
func (s *Store) TicketExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tickets WHERE id = ? AND status < ?`, id, int(types.StatusAccepted)).Scan(&n)
	if err != nil {
		return false, wrapErr("sqlite.TicketExists", err)
	}
	return n > 0, nil
}

// TombstoneExists reports whether a tombstone exists for id.
func (s *Store) TombstoneExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tombstones WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, wrapErr("sqlite.TombstoneExists", err)
	}
	return n > 0, nil
}

// AllTicketIDs returns every ticket id currently in the cache,
// regardless of status. Sync and the validator do not call it: sync
// tracks ids from the log snapshots and the validator uses AllTickets.
func (s *Store) AllTicketIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tickets`)
	if err != nil {
		return nil, wrapErr("sqlite.AllTicketIDs", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("sqlite.AllTicketIDs", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapErr("sqlite.AllTicketIDs", rows.Err())
}

// AllTickets returns every ticket row, with its associations loaded, for the
// validator and compactor, which need to scan the whole set.
func (s *Store) AllTickets(ctx context.Context) ([]*types.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, ticketSelectSQL)
	if err != nil {
		return nil, wrapErr("sqlite.AllTickets", err)
	}
	defer rows.Close()

	var out []*types.Ticket
	for rows.Next() {
		tk, err := scanTicketRow(rows)
		if err != nil {
			return nil, wrapErr("sqlite.AllTickets", err)
		}
		out = append(out, tk)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("sqlite.AllTickets", err)
	}
	for _, tk := range out {
		if err := s.loadAssociations(ctx, tk); err != nil {
			return nil, err
		}
	}
	return out, nil
}

const ticketSelectSQL = `
SELECT id, type, status, priority, name, spec, notes, accept, done_at, branch,
       parent, created_from, supersedes, kill_reason,
       created_from_name, supersedes_name, supersedes_reason,
       created_at, updated_at, resolved_at, compacted_at,
       author, completed_at, cost, tokens_in, tokens_out, iterations, model, retries, kill_count
FROM tickets
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicketRow(row rowScanner) (*types.Ticket, error) {
	var tk types.Ticket
	var ttype, status, priority int
	err := row.Scan(
		&tk.ID, &ttype, &status, &priority, &tk.Name, &tk.Spec, &tk.Notes, &tk.Accept, &tk.DoneAt, &tk.Branch,
		&tk.Parent, &tk.CreatedFrom, &tk.Supersedes, &tk.KillReason,
		&tk.CreatedFromName, &tk.SupersedesName, &tk.SupersedesReason,
		&tk.CreatedAt, &tk.UpdatedAt, &tk.ResolvedAt, &tk.CompactedAt,
		&tk.Author, &tk.CompletedAt, &tk.Cost, &tk.TokensIn, &tk.TokensOut, &tk.Iterations, &tk.Model, &tk.Retries, &tk.KillCount,
	)
	if err != nil {
		return nil, err
	}
	tk.Type = types.TicketType(ttype)
	tk.Status = types.Status(status)
	tk.Priority = types.Priority(priority)
	return &tk, nil
}

func (s *Store) loadAssociations(ctx context.Context, tk *types.Ticket) error {
	deps, err := s.queryStrings(ctx, `SELECT dep_id FROM ticket_deps WHERE ticket_id = ?`, tk.ID)
	if err != nil {
		return err
	}
	tk.Deps = deps

	labels, err := s.queryStrings(ctx, `SELECT label FROM ticket_labels WHERE ticket_id = ?`, tk.ID)
	if err != nil {
		return err
	}
	tk.Labels = labels

	rows, err := s.db.QueryContext(ctx, `SELECT key, value_text, value_num FROM ticket_meta WHERE ticket_id = ?`, tk.ID)
	if err != nil {
		return wrapErr("sqlite.loadAssociations", err)
	}
	defer rows.Close()
	meta := make(map[string]types.MetaValue)
	for rows.Next() {
		var key string
		var valText sql.NullString
		var valNum sql.NullFloat64
		if err := rows.Scan(&key, &valText, &valNum); err != nil {
			return wrapErr("sqlite.loadAssociations", err)
		}
		if valText.Valid {
			meta[key] = types.MetaValue{Text: valText.String, IsText: true}
		} else {
			meta[key] = types.MetaValue{Num: valNum.Float64}
		}
	}
	if len(meta) > 0 {
		tk.Meta = meta
	}
	return wrapErr("sqlite.loadAssociations", rows.Err())
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("sqlite.queryStrings", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, wrapErr("sqlite.queryStrings", err)
		}
		out = append(out, v)
	}
	return out, wrapErr("sqlite.queryStrings", rows.Err())
}

// GetTombstone fetches a tombstone by id, or ErrNotFound.
func (s *Store) GetTombstone(ctx context.Context, id string) (*types.Tombstone, error) {
	var ts types.Tombstone
	var isAccept int
	err := s.db.QueryRowContext(ctx, `SELECT id, done_at, reason, name, is_accept, timestamp FROM tombstones WHERE id = ?`, id).
		Scan(&ts.ID, &ts.DoneAt, &ts.Reason, &ts.Name, &isAccept, &ts.Timestamp)
	if err != nil {
		return nil, wrapErr("sqlite.GetTombstone", err)
	}
	ts.IsAccept = isAccept != 0
	return &ts, nil
}
