package resolver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/logging"
	"github.com/tixhq/tix/internal/storage/sqlite"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := sqlite.Open(filepath.Join(dir, "cache.db"), logging.New(logging.LevelError))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustProject(t *testing.T, store *sqlite.Store, raw string) {
	t.Helper()
	line, err := jsonl.DecodeLine([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, store.Project(context.Background(), line))
}

func TestResolveLiveTicket(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"task","id":"t-00000001","s":"p","name":"A"}`)

	st, err := Resolve(context.Background(), store, "t-00000001")
	require.NoError(t, err)
	require.Equal(t, Resolved, st)
}

func TestResolveTombstonedTicket(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"task","id":"t-00000002","s":"p","name":"B"}`)
	mustProject(t, store, `{"t":"accept","id":"t-00000002","done_at":"beef","name":"B","ts":100}`)

	st, err := Resolve(context.Background(), store, "t-00000002")
	require.NoError(t, err)
	require.Equal(t, Stale, st, "an accepted ticket is no longer live; only its tombstone resolves the reference")
}

func TestResolveBrokenReference(t *testing.T) {
	store := openTestStore(t)
	st, err := Resolve(context.Background(), store, "t-ffffffff")
	require.NoError(t, err)
	require.Equal(t, Broken, st)
}

func TestResolveEmptyIsBroken(t *testing.T) {
	store := openTestStore(t)
	st, err := Resolve(context.Background(), store, "")
	require.NoError(t, err)
	require.Equal(t, Broken, st)
}

func TestResolveAllAggregatesCounts(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"task","id":"t-00000003","s":"p","name":"C"}`)

	_, counts, err := ResolveAll(context.Background(), store, []string{"t-00000003", "t-nonexist1"})
	require.NoError(t, err)
	require.Equal(t, 1, counts.Resolved)
	require.Equal(t, 1, counts.Broken)
}
