package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tixhq/tix/internal/jsonl"
	"github.com/tixhq/tix/internal/logging"
	"github.com/tixhq/tix/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path, logging.New(logging.LevelError))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func decodeOwned(t *testing.T, raw string) *jsonl.Line {
	t.Helper()
	line, err := jsonl.DecodeLine([]byte(raw))
	require.NoError(t, err)
	require.True(t, line.Owned)
	return line
}

func TestScenarioAddDoneAccept(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Project(ctx, decodeOwned(t, `{"t":"task","id":"t-00000001","s":"p","name":"A"}`)))
	require.NoError(t, s.Project(ctx, decodeOwned(t, `{"t":"task","id":"t-00000001","s":"d","name":"A","done_at":"abcd12"}`)))
	require.NoError(t, s.Project(ctx, decodeOwned(t, `{"t":"accept","id":"t-00000001","done_at":"abcd12","name":"A","ts":1700000000}`)))

	tk, err := s.GetTicket(ctx, "t-00000001")
	require.NoError(t, err)
	require.Equal(t, types.StatusAccepted, tk.Status)
	require.Greater(t, tk.ResolvedAt, int64(0))

	ts, err := s.GetTombstone(ctx, "t-00000001")
	require.NoError(t, err)
	require.True(t, ts.IsAccept)
}

func TestScenarioReject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Project(ctx, decodeOwned(t, `{"t":"task","id":"t-00000001","s":"p","name":"A"}`)))
	require.NoError(t, s.Project(ctx, decodeOwned(t, `{"t":"task","id":"t-00000001","s":"d","name":"A","done_at":"abcd12"}`)))
	require.NoError(t, s.Project(ctx, decodeOwned(t, `{"t":"reject","id":"t-00000001","reason":"flaky","ts":1700000001}`)))

	tk, err := s.GetTicket(ctx, "t-00000001")
	require.NoError(t, err)
	require.Equal(t, types.StatusPending, tk.Status)
	require.Equal(t, "", tk.DoneAt)

	ts, err := s.GetTombstone(ctx, "t-00000001")
	require.NoError(t, err)
	require.False(t, ts.IsAccept)
	require.Equal(t, "flaky", ts.Reason)
}

func TestAddThenDeleteProducesDeletedWithResolvedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Project(ctx, decodeOwned(t, `{"t":"task","id":"t-00000001","s":"p","name":"A"}`)))
	require.NoError(t, s.Project(ctx, decodeOwned(t, `{"t":"delete","id":"t-00000001","ts":1700000002}`)))

	tk, err := s.GetTicket(ctx, "t-00000001")
	require.NoError(t, err)
	require.Equal(t, types.StatusDeleted, tk.Status)
	require.Greater(t, tk.ResolvedAt, int64(0))
}

func TestProjectionIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	line := decodeOwned(t, `{"t":"task","id":"t-00000001","s":"p","name":"A","pri":3}`)

	require.NoError(t, s.Project(ctx, line))
	require.NoError(t, s.Project(ctx, line))

	ids, err := s.AllTicketIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

func TestSearchRanksByWeight(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Project(ctx, decodeOwned(t, `{"t":"task","id":"t-00000001","s":"p","name":"fix login bug"}`)))
	require.NoError(t, s.Project(ctx, decodeOwned(t, `{"t":"task","id":"t-00000002","s":"p","name":"unrelated","notes":"login mentioned once"}`)))

	results, err := s.Search(ctx, "login")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "t-00000001", results[0].TicketID)
}

func TestRebuildReplaysFromScratch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lines, warnings, err := jsonl.ReadAllBytes([]byte(
		`{"t":"task","id":"t-00000001","s":"p","name":"A"}` + "\n" +
			`{"t":"task","id":"t-00000002","s":"p","name":"B"}` + "\n",
	))
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.NoError(t, s.Rebuild(ctx, lines, 12345, 67))

	ids, err := s.AllTicketIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	stale, err := s.IsStale(ctx, 12345, 67)
	require.NoError(t, err)
	require.False(t, stale)

	stale, err = s.IsStale(ctx, 99999, 67)
	require.NoError(t, err)
	require.True(t, stale)
}
