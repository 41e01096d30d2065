package validate

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

func findCode(report *Report, code string) *Finding {
	for i := range report.Findings {
		if report.Findings[i].Code == code {
			return &report.Findings[i]
		}
	}
	return nil
}

func TestValidateCleanGraphHasNoErrors(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"task","id":"t-00000001","s":"p","name":"A","accept":"done when green"}`)

	report, err := Run(context.Background(), store)
	require.NoError(t, err)
	require.False(t, report.HasErrors())
}

func TestValidateFlagsDoneTaskMissingDoneAt(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"task","id":"t-00000002","s":"d","name":"B"}`)

	report, err := Run(context.Background(), store)
	require.NoError(t, err)
	f := findCode(report, "missing-done-at")
	require.NotNil(t, f)
	require.Equal(t, SeverityError, f.Severity)
}

func TestValidateFlagsBrokenDep(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"task","id":"t-00000003","s":"p","name":"C","deps":["t-ffffffff"]}`)

	report, err := Run(context.Background(), store)
	require.NoError(t, err)
	f := findCode(report, "dep-not-found")
	require.NotNil(t, f)
}

func TestValidateFlagsDepOfWrongType(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"issue","id":"i-00000001","s":"p","name":"Issue"}`)
	mustProject(t, store, `{"t":"task","id":"t-00000004","s":"p","name":"D","deps":["i-00000001"]}`)

	report, err := Run(context.Background(), store)
	require.NoError(t, err)
	f := findCode(report, "dep-not-task")
	require.NotNil(t, f)
}

func TestValidateFlagsDuplicateDep(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"task","id":"t-00000005","s":"p","name":"E"}`)
	mustProject(t, store, `{"t":"task","id":"t-00000006","s":"p","name":"F","deps":["t-00000005","t-00000005"]}`)

	report, err := Run(context.Background(), store)
	require.NoError(t, err)
	f := findCode(report, "duplicate-dep")
	require.NotNil(t, f)
}

func TestValidateDetectsDependencyCycle(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"task","id":"t-00000007","s":"p","name":"G","deps":["t-00000008"]}`)
	mustProject(t, store, `{"t":"task","id":"t-00000008","s":"p","name":"H","deps":["t-00000007"]}`)

	report, err := Run(context.Background(), store)
	require.NoError(t, err)
	f := findCode(report, "dep-cycle")
	require.NotNil(t, f)
}

func TestValidateWarnsOnMissingNameAndAccept(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"task","id":"t-00000009","s":"p"}`)

	report, err := Run(context.Background(), store)
	require.NoError(t, err)
	require.False(t, report.HasErrors())
	require.NotNil(t, findCode(report, "missing-name"))
	require.NotNil(t, findCode(report, "missing-accept"))
}

func TestValidateStaleCrossRefIsWarningNotError(t *testing.T) {
	store := openTestStore(t)
	mustProject(t, store, `{"t":"task","id":"t-0000000a","s":"p","name":"I","created_from":"t-0000000b"}`)
	mustProject(t, store, `{"t":"task","id":"t-0000000b","s":"p","name":"J"}`)
	mustProject(t, store, `{"t":"accept","id":"t-0000000b","done_at":"abc","name":"J","ts":100}`)

	report, err := Run(context.Background(), store)
	require.NoError(t, err)
	f := findCode(report, "stale-created_from")
	if f != nil {
		require.Equal(t, SeverityWarning, f.Severity)
	}
}
