package sqlite

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/tixhq/tix/internal/tixerr"
)

const (
	metaKeyPlanMtime  = "plan_mtime"
	metaKeyPlanSize   = "plan_size"
	metaKeyLastCommit = "last_commit"
)

// GetMeta reads a bookkeeping key from the meta table. Returns ("",
// false, nil) if absent.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr("sqlite.GetMeta", err)
	}
	return value, true, nil
}

// SetMeta upserts a bookkeeping key.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return wrapErr("sqlite.SetMeta", err)
}

// IsStale compares the log's current mtime/size against what the
// cache last recorded, per spec.md 4.5. A cache with no recorded
// plan_mtime/plan_size (freshly created) is always stale.
func (s *Store) IsStale(ctx context.Context, logMtime, logSize int64) (bool, error) {
	mtimeStr, ok, err := s.GetMeta(ctx, metaKeyPlanMtime)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	sizeStr, ok, err := s.GetMeta(ctx, metaKeyPlanSize)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	mtime, err := strconv.ParseInt(mtimeStr, 10, 64)
	if err != nil {
		return true, nil
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return true, nil
	}
	return mtime != logMtime || size != logSize, nil
}

// RecordFreshness stamps the cache with the log's current mtime/size.
func (s *Store) RecordFreshness(ctx context.Context, logMtime, logSize int64) error {
	if err := s.SetMeta(ctx, metaKeyPlanMtime, strconv.FormatInt(logMtime, 10)); err != nil {
		return err
	}
	return s.SetMeta(ctx, metaKeyPlanSize, strconv.FormatInt(logSize, 10))
}

// Clear removes every ticket/dep/label/meta/tombstone/keyword row,
// keeping the bookkeeping meta table intact (freshness stamps are
// overwritten immediately after by the caller). Used by Rebuild.
func (s *Store) Clear(ctx context.Context) error {
	tables := []string{"tickets", "ticket_deps", "ticket_labels", "ticket_meta", "tombstones", "keywords"}
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return tixerr.New(tixerr.KindDB, "sqlite.Clear", "%v", err)
		}
	}
	return nil
}
