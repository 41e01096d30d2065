package lintlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tixhq/tix/internal/jsonl"
)

func decodeAll(t *testing.T, raws []string) []*jsonl.Line {
	t.Helper()
	lines := make([]*jsonl.Line, 0, len(raws))
	for _, raw := range raws {
		line, err := jsonl.DecodeLine([]byte(raw))
		require.NoError(t, err)
		lines = append(lines, line)
	}
	return lines
}

func TestRunFlagsDuplicateIDKeepingNewest(t *testing.T) {
	lines := decodeAll(t, []string{
		`{"t":"task","id":"t-00000001","name":"old","updated_at":100}`,
		`{"t":"task","id":"t-00000001","name":"new","updated_at":200}`,
	})

	report := Run(lines)
	require.Len(t, report.Duplicates, 1)
	require.Equal(t, "t-00000001", report.Duplicates[0].ID)
	require.Equal(t, 2, report.Duplicates[0].Occurrences)
	require.Equal(t, int64(200), report.Duplicates[0].KeptUpdatedAt)
}

func TestRunFlagsBrokenDep(t *testing.T) {
	lines := decodeAll(t, []string{
		`{"t":"task","id":"t-00000002","name":"A","deps":["t-ffffffff"]}`,
	})

	report := Run(lines)
	require.Len(t, report.Broken, 1)
	require.Equal(t, "t-00000002", report.Broken[0].TicketID)
	require.Equal(t, "t-ffffffff", report.Broken[0].DepID)
}

func TestRunCleanLogHasNoFindings(t *testing.T) {
	lines := decodeAll(t, []string{
		`{"t":"task","id":"t-00000003","name":"A"}`,
		`{"t":"task","id":"t-00000004","name":"B","deps":["t-00000003"]}`,
	})

	report := Run(lines)
	require.False(t, report.HasFindings())
}

func TestRunIgnoresForeignLines(t *testing.T) {
	lines := decodeAll(t, []string{
		`{"t":"orchestrator_event","payload":"whatever"}`,
	})

	report := Run(lines)
	require.False(t, report.HasFindings())
}
