package jsonl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tixhq/tix/internal/types"
)

func TestTicketRoundTrip(t *testing.T) {
	tk := &types.Ticket{
		ID:       "t-00000001",
		Type:     types.TypeTask,
		Status:   types.StatusPending,
		Priority: types.PriorityHigh,
		Name:     "A",
		Deps:     []string{"t-00000002"},
		Labels:   []string{"blocked"},
		Meta: map[string]types.MetaValue{
			"estimate_minutes": {Num: 30},
		},
	}
	rec, err := TicketToRecord(tk)
	require.NoError(t, err)
	b, err := EncodeRecord(rec)
	require.NoError(t, err)

	line, err := DecodeLine(b)
	require.NoError(t, err)
	require.True(t, line.Owned)

	got, err := RecordToTicket(line.Rec)
	require.NoError(t, err)
	require.Equal(t, tk.ID, got.ID)
	require.Equal(t, tk.Type, got.Type)
	require.Equal(t, tk.Status, got.Status)
	require.Equal(t, tk.Priority, got.Priority)
	require.Equal(t, tk.Name, got.Name)
	require.Equal(t, tk.Deps, got.Deps)
	require.Equal(t, tk.Labels, got.Labels)
	require.InDelta(t, 30.0, got.Meta["estimate_minutes"].Num, 0.0001)
}

func TestDecodeLinePreservesForeignLines(t *testing.T) {
	raw := []byte(`{"t":"spec","path":"docs/x.md"}`)
	line, err := DecodeLine(raw)
	require.NoError(t, err)
	require.False(t, line.Owned)
	require.Equal(t, raw, line.Raw)
}

func TestDecodeLineScenario1(t *testing.T) {
	raw := []byte(`{"t":"task","id":"t-00000001","s":"p","name":"A"}`)
	line, err := DecodeLine(raw)
	require.NoError(t, err)
	require.True(t, line.Owned)
	tk, err := RecordToTicket(line.Rec)
	require.NoError(t, err)
	require.Equal(t, types.StatusPending, tk.Status)
	require.Equal(t, "A", tk.Name)
}

func TestAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.jsonl")

	require.NoError(t, Append(path, &Record{T: KindTask, ID: "t-00000001", S: "p", Name: "A"}))
	require.NoError(t, Append(path, &Record{T: "spec", ID: "ignored"}))
	require.NoError(t, Append(path, &Record{T: KindAccept, ID: "t-00000001", DoneAt: "abc123", Name: "A", Timestamp: 1700000000}))

	lines, warnings, err := ReadAll(path)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, lines, 3)
	require.True(t, lines[0].Owned)
	require.False(t, lines[1].Owned)
	require.True(t, lines[2].Owned)
}

func TestReadAllSkipsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.jsonl")
	content := "{\"t\":\"task\",\"id\":\"t-00000001\",\"s\":\"p\",\"name\":\"A\"}\n" +
		"not json at all\n" +
		"{\"t\":\"task\",\"id\":\"t-00000002\",\"s\":\"p\",\"name\":\"B\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lines, warnings, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Len(t, warnings, 1)
}

func TestRewriteIsAtomicAndOrdered(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.jsonl")
	require.NoError(t, Append(path, &Record{T: KindTask, ID: "t-00000002", S: "p", Name: "old"}))

	plan := &RewritePlan{
		Preserved: [][]byte{[]byte(`{"t":"spec","path":"docs/x.md"}`)},
		Owned: []*Record{
			{T: KindTask, ID: "t-00000001", S: "p", Name: "A"},
			{T: KindTask, ID: "t-00000002", S: "p", Name: "B"},
		},
	}
	require.NoError(t, Rewrite(path, plan))

	lines, warnings, err := ReadAll(path)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, lines, 3)
	require.False(t, lines[0].Owned)
	require.Equal(t, "t-00000001", lines[1].Rec.ID)
	require.Equal(t, "t-00000002", lines[2].Rec.ID)
}
