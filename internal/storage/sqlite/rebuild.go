package sqlite

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/tixhq/tix/internal/jsonl"
)

// Rebuild clears the cache and replays lines additively (spec.md 4.5:
// "clear all ... rows and replay the entire log additively"). It runs
// inside a single BEGIN IMMEDIATE transaction so a reader never
// observes a half-cleared cache.
func (s *Store) Rebuild(ctx context.Context, lines []*jsonl.Line, logMtime, logSize int64) error {
	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		if err := clearOnConn(ctx, conn); err != nil {
			return err
		}
		for _, line := range lines {
			if !line.Owned {
				continue
			}
			if err := s.projectOn(ctx, conn, line.Rec); err != nil {
				return err
			}
		}
		return setMetaOnConn(ctx, conn, logMtime, logSize)
	})
}

func clearOnConn(ctx context.Context, conn *sql.Conn) error {
	tables := []string{"tickets", "ticket_deps", "ticket_labels", "ticket_meta", "tombstones", "keywords"}
	for _, t := range tables {
		if _, err := conn.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return wrapErr("sqlite.clearOnConn", err)
		}
	}
	return nil
}

func setMetaOnConn(ctx context.Context, conn *sql.Conn, logMtime, logSize int64) error {
	_, err := conn.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('plan_mtime', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.FormatInt(logMtime, 10))
	if err != nil {
		return wrapErr("sqlite.setMetaOnConn", err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('plan_size', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.FormatInt(logSize, 10))
	return wrapErr("sqlite.setMetaOnConn", err)
}
