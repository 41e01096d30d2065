package gitlog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateBranchRejectsShellMetacharacters(t *testing.T) {
	require.NoError(t, ValidateBranch(""))
	require.NoError(t, ValidateBranch("all"))
	require.NoError(t, ValidateBranch("main"))
	require.NoError(t, ValidateBranch("feature/foo-bar_1"))
	require.Error(t, ValidateBranch("main; rm -rf /"))
	require.Error(t, ValidateBranch("../escape"))
	require.Error(t, ValidateBranch("$(whoami)"))
}

func fakeRunner(t *testing.T, script map[string]string) Runner {
	return func(_ context.Context, args ...string) ([]byte, error) {
		key := strings.Join(args, " ")
		if out, ok := script[key]; ok {
			return []byte(out), nil
		}
		t.Fatalf("unexpected git invocation: %v", args)
		return nil, nil
	}
}

func TestCommitsTouchingParsesLog(t *testing.T) {
	run := fakeRunner(t, map[string]string{
		"log --follow --format=%H %ct --reverse HEAD -- .tix/plan.jsonl": "aaa 100\nbbb 200\n",
	})
	commits, overflow, err := CommitsTouching(context.Background(), run, ".tix/plan.jsonl", "")
	require.NoError(t, err)
	require.False(t, overflow)
	require.Equal(t, []Commit{{Hash: "aaa", Timestamp: 100}, {Hash: "bbb", Timestamp: 200}}, commits)
}

func TestReadAtCommitMissingIsNotError(t *testing.T) {
	run := func(_ context.Context, _ ...string) ([]byte, error) {
		return nil, errGitShowMiss
	}
	content, ok, err := ReadAtCommit(context.Background(), run, "aaa", ".tix/plan.jsonl")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, content)
}

var errGitShowMiss = &stubErr{"path does not exist"}

type stubErr struct{ msg string }

func (e *stubErr) Error() string { return e.msg }

func TestReadAtCommitsPreservesOrder(t *testing.T) {
	run := fakeRunner(t, map[string]string{
		"show aaa:.tix/plan.jsonl": "one",
		"show bbb:.tix/plan.jsonl": "two",
	})
	commits := []Commit{{Hash: "aaa"}, {Hash: "bbb"}}
	results, err := ReadAtCommits(context.Background(), run, commits, ".tix/plan.jsonl", 2)
	require.NoError(t, err)
	require.Equal(t, "one", string(results[0]))
	require.Equal(t, "two", string(results[1]))
}
