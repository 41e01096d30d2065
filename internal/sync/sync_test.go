package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tixhq/tix/internal/gitlog"
	"github.com/tixhq/tix/internal/logging"
	"github.com/tixhq/tix/internal/storage/sqlite"
)

func newRunner(t *testing.T, script map[string]string) gitlog.Runner {
	t.Helper()
	return func(_ context.Context, args ...string) ([]byte, error) {
		key := strings.Join(args, " ")
		if out, ok := script[key]; ok {
			return []byte(out), nil
		}
		return nil, &notFoundErr{}
	}
}

type notFoundErr struct{}

func (e *notFoundErr) Error() string { return "not found" }

// TestSyncDetectsImplicitDelete implements spec.md 8 scenario 6: a
// ticket present at commit N with no resolution marker, absent at
// commit N+1 without one either, gets compacted_at stamped to N+1's
// timestamp.
func TestSyncDetectsImplicitDelete(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "plan.jsonl")
	workingContent := `{"t":"task","id":"t-aaaaaaaa","s":"p","name":"A"}` + "\n"
	require.NoError(t, os.WriteFile(logPath, []byte(workingContent), 0o644))

	snapshotN := `{"t":"task","id":"t-aaaaaaaa","s":"p","name":"A"}` + "\n"
	snapshotN1 := "" // ticket silently dropped, no resolution marker

	run := newRunner(t, map[string]string{
		"log --follow --format=%H %ct --reverse HEAD -- " + logPath: "n 100\nn1 200\n",
		"show n:" + logPath:                                        snapshotN,
		"show n1:" + logPath:                                       snapshotN1,
		"rev-parse HEAD":                                           "n1\n",
	})

	store, err := sqlite.Open(filepath.Join(dir, "cache.db"), logging.New(logging.LevelError))
	require.NoError(t, err)
	defer store.Close()

	sy := &Syncer{Store: store, Run: run, LogPath: logPath}
	result, err := sy.Sync(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, []string{"t-aaaaaaaa"}, result.ImplicitDeletions)

	tk, err := store.GetTicket(context.Background(), "t-aaaaaaaa")
	require.NoError(t, err)
	require.Equal(t, int64(200), tk.CompactedAt)
}

func TestSyncNeverOverwritesCompactedAt(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "plan.jsonl")
	require.NoError(t, os.WriteFile(logPath, []byte(""), 0o644))

	run := newRunner(t, map[string]string{
		"log --follow --format=%H %ct --reverse HEAD -- " + logPath: "n 100\nn1 200\nn2 300\n",
		"show n:" + logPath:  `{"t":"task","id":"t-aaaaaaaa","s":"p","name":"A"}` + "\n",
		"show n1:" + logPath: "",
		"show n2:" + logPath: `{"t":"task","id":"t-aaaaaaaa","s":"p","name":"A"}` + "\n",
		"rev-parse HEAD":     "n2\n",
	})

	store, err := sqlite.Open(filepath.Join(dir, "cache.db"), logging.New(logging.LevelError))
	require.NoError(t, err)
	defer store.Close()

	sy := &Syncer{Store: store, Run: run, LogPath: logPath}
	_, err = sy.Sync(context.Background(), "")
	require.NoError(t, err)

	tk, err := store.GetTicket(context.Background(), "t-aaaaaaaa")
	require.NoError(t, err)
	require.Equal(t, int64(200), tk.CompactedAt, "reappearance at n2 must not clear or move the existing stamp")
}
