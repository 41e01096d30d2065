package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/tixhq/tix/internal/logging"
	"github.com/tixhq/tix/internal/tixerr"
)

// Sentinel errors, generalized from the teacher's sqlite.errors.go
// into tixerr-backed wrapping (internal/tixerr) instead of a
// package-private set.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrCycle    = errors.New("dependency cycle detected")
)

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return tixerr.New(tixerr.KindNotFound, op, "%w", ErrNotFound)
	}
	return tixerr.Wrap(tixerr.KindDB, op, err)
}

// Store wraps the embedded cache database, spec.md 4.3.
type Store struct {
	db  *sql.DB
	log *logging.Logger
}

// Open opens (creating if absent) the cache file at path. The
// connection pool is capped at one writer; PRAGMA busy_timeout gives
// the engine's own short-wait fallback before our backoff loop around
// BEGIN IMMEDIATE kicks in for Rebuild's bulk replay. Sync and
// compaction write through individual statements, outside any such
// transaction.
func Open(path string, log *logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, tixerr.New(tixerr.KindDB, "sqlite.Open", "%v", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, log: log}
	if err := s.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle. Design Notes 9: "open DB on
// command entry, guarantee release on every exit path."
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for the sql escape hatch
// (spec.md 4.10 "escape hatch").
func (s *Store) DB() *sql.DB { return s.db }

// withImmediateTx runs fn inside a BEGIN IMMEDIATE transaction on a
// dedicated connection, retrying with capped exponential backoff on
// SQLITE_BUSY, mirroring the teacher's beginImmediateWithRetry pattern
// (SPEC_FULL.md 5). fn receives the raw connection rather than a
// *sql.Tx since BEGIN IMMEDIATE is issued manually to get the
// exclusive-lock semantics database/sql's BeginTx does not expose.
func (s *Store) withImmediateTx(ctx context.Context, fn func(conn *sql.Conn) error) error {
	op := func() error {
		conn, err := s.db.Conn(ctx)
		if err != nil {
			return backoff.Permanent(tixerr.New(tixerr.KindDB, "sqlite.withImmediateTx", "%v", err))
		}
		defer conn.Close()

		if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			if isBusy(err) {
				return err // retryable
			}
			return backoff.Permanent(tixerr.New(tixerr.KindDB, "sqlite.withImmediateTx", "%v", err))
		}

		if fnErr := fn(conn); fnErr != nil {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
			return backoff.Permanent(fnErr)
		}
		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return backoff.Permanent(tixerr.New(tixerr.KindDB, "sqlite.withImmediateTx", "%v", err))
		}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(op, bo); err != nil {
		return tixerr.Wrap(tixerr.KindDB, "sqlite.withImmediateTx", err)
	}
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}
