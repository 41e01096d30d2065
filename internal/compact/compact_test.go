package compact

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
		return nil, &missErr{}
	}
}

type missErr struct{}

func (e *missErr) Error() string { return "not found" }

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []string
	for _, l := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// TestCompactPreservesOrchestratorLines implements spec.md 8 scenario
// 5: a foreign (non-tix) line interleaved with tix-owned lines must
// survive a compaction byte-for-byte, in its original relative order
// among other preserved lines.
func TestCompactPreservesOrchestratorLines(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "plan.jsonl")
	content := `{"orchestrator":"ralph","iteration":1}
{"t":"task","id":"t-00000001","s":"d","name":"A","done_at":"abcd12","created_at":100,"updated_at":100}
{"t":"accept","id":"t-00000001","done_at":"abcd12","name":"A","ts":150}
`
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0o644))

	run := newRunner(t, map[string]string{
		"log --follow --format=%H %ct --reverse HEAD -- " + logPath: "n 150\n",
		"show n:" + logPath:    content,
		"show HEAD:" + logPath: content,
		"rev-parse HEAD":       "n\n",
	})

	store, err := sqlite.Open(filepath.Join(dir, "cache.db"), logging.New(logging.LevelError))
	require.NoError(t, err)
	defer store.Close()

	c := &Compactor{Store: store, Run: run, LogPath: logPath, Now: func() int64 { return 500 }}
	_, err = c.Run(context.Background())
	require.NoError(t, err)

	lines := readLines(t, logPath)
	require.Contains(t, lines[0], `"orchestrator":"ralph"`)
	require.NotContains(t, strings.Join(lines, "\n"), `"id":"t-00000001"`,
		"a resolved ticket already committed at HEAD is dropped from the rewritten log, not re-emitted")

	tk, err := store.GetTicket(context.Background(), "t-00000001")
	require.NoError(t, err)
	require.Equal(t, int64(500), tk.CompactedAt)
}

// TestCompactProtectsUncommittedResolutions: a ticket resolved in the
// working tree but not yet committed must not be stamped, and its
// resolution marker must survive the rewrite (spec.md 4.7 step 3).
func TestCompactProtectsUncommittedResolutions(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "plan.jsonl")

	committed := `{"t":"task","id":"t-00000002","s":"p","name":"B","created_at":100,"updated_at":100}
`
	working := committed + `{"t":"accept","id":"t-00000002","done_at":"feed00","name":"B","ts":200}
`
	require.NoError(t, os.WriteFile(logPath, []byte(working), 0o644))

	run := newRunner(t, map[string]string{
		"log --follow --format=%H %ct --reverse HEAD -- " + logPath: "n 100\n",
		"show n:" + logPath: committed,
		"show HEAD:" + logPath: committed,
		"rev-parse HEAD":    "n\n",
	})

	store, err := sqlite.Open(filepath.Join(dir, "cache.db"), logging.New(logging.LevelError))
	require.NoError(t, err)
	defer store.Close()

	c := &Compactor{Store: store, Run: run, LogPath: logPath, Now: func() int64 { return 999 }}
	result, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"t-00000002"}, result.ProtectedIDs)

	tk, err := store.GetTicket(context.Background(), "t-00000002")
	require.NoError(t, err)
	require.Equal(t, int64(0), tk.CompactedAt, "protected ticket must not be stamped")

	joined := strings.Join(readLines(t, logPath), "\n")
	require.Contains(t, joined, `"t":"accept"`)
	require.Contains(t, joined, `"id":"t-00000002"`)
}
