package tql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseExampleQuery exercises the literal grammar example from
// spec.md 4.10: "tasks | status=pending priority=high | label=blocked | limit 5".
func TestParseExampleQuery(t *testing.T) {
	q, err := Parse("tasks | status=pending priority=high | label=blocked | limit 5")
	require.NoError(t, err)
	require.Equal(t, "tasks", q.Source)
	require.Len(t, q.Stages, 3)

	require.Equal(t, StageFilter, q.Stages[0].Kind)
	require.Len(t, q.Stages[0].Filters, 2)
	assert.Equal(t, "status", q.Stages[0].Filters[0].Field)
	assert.Equal(t, []string{"pending"}, q.Stages[0].Filters[0].Values)
	assert.Equal(t, "priority", q.Stages[0].Filters[1].Field)
	assert.Equal(t, []string{"high"}, q.Stages[0].Filters[1].Values)

	require.Equal(t, StageFilter, q.Stages[1].Kind)
	require.Len(t, q.Stages[1].Filters, 1)
	assert.Equal(t, "label", q.Stages[1].Filters[0].Field)

	require.Equal(t, StageLimit, q.Stages[2].Kind)
	assert.Equal(t, 5, q.Stages[2].N)
}

func TestCompileAppliesEnumSugarAndTypeFilter(t *testing.T) {
	q, err := Parse("tasks | status=pending priority=high")
	require.NoError(t, err)

	compiled, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "tickets.type = ?")
	assert.Contains(t, compiled.SQL, "tickets.status = ?")
	assert.Contains(t, compiled.SQL, "tickets.priority = ?")
	assert.False(t, compiled.IsAggregate)

	// enum sugar: status=pending -> 0, priority=high -> 3.
	var statusBind, priorityBind *Bind
	for i := range compiled.Binds {
		b := compiled.Binds[i]
		if b.Kind == BindInt && b.Int == 0 {
			statusBind = &b
		}
		if b.Kind == BindInt && b.Int == 3 {
			priorityBind = &b
		}
	}
	require.NotNil(t, statusBind)
	require.NotNil(t, priorityBind)
}

func TestCompileOmitsDefaultScopeWhenStatusExplicit(t *testing.T) {
	q, err := Parse("tasks | status=accepted")
	require.NoError(t, err)
	compiled, err := Compile(q)
	require.NoError(t, err)
	assert.NotContains(t, compiled.SQL, "tickets.status < ")
}

func TestCompileAllModifierBypassesDefaultScope(t *testing.T) {
	q, err := Parse("tasks | all")
	require.NoError(t, err)
	require.True(t, q.AllScope)
	compiled, err := Compile(q)
	require.NoError(t, err)
	assert.NotContains(t, compiled.SQL, "tickets.status < ")
}

func TestCompileTicketsSourceOmitsTypeFilter(t *testing.T) {
	q, err := Parse("tickets | status=pending")
	require.NoError(t, err)
	compiled, err := Compile(q)
	require.NoError(t, err)
	assert.NotContains(t, compiled.SQL, "tickets.type = ?")
}

func TestCompileLikeRewritesWildcards(t *testing.T) {
	q, err := Parse(`tasks | name~"foo*bar?"`)
	require.NoError(t, err)
	compiled, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "LIKE")
	found := false
	for _, b := range compiled.Binds {
		if b.Kind == BindText && b.Text == "foo%bar_" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompileEmptyValueIsNullCheck(t *testing.T) {
	q, err := Parse("tasks | branch=")
	require.NoError(t, err)
	compiled, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "tickets.branch IS NULL")
}

func TestCompileCSVBecomesIN(t *testing.T) {
	q, err := Parse("tasks | id=t-00000001,t-00000002")
	require.NoError(t, err)
	compiled, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "IN (?,?)")
}

func TestCompileNegatedFilterFlipsOperator(t *testing.T) {
	q, err := Parse("tasks | !status=done")
	require.NoError(t, err)
	compiled, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "tickets.status != ?")
}

func TestCompileAggregateQuery(t *testing.T) {
	q, err := Parse("tasks | group status | count")
	require.NoError(t, err)
	compiled, err := Compile(q)
	require.NoError(t, err)
	assert.True(t, compiled.IsAggregate)
	assert.Contains(t, compiled.SQL, "GROUP BY tickets.status")
	assert.Contains(t, compiled.SQL, "COUNT(*) AS count")
}

func TestCompileMetaFieldJoinsSideTable(t *testing.T) {
	q, err := Parse("tasks | meta.priority_score>5")
	require.NoError(t, err)
	compiled, err := Compile(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.SQL, "LEFT JOIN ticket_meta")
}

func TestParseRejectsUnknownSource(t *testing.T) {
	_, err := Parse("widgets | status=pending")
	require.Error(t, err)
}

func TestParseRejectsTooManyFilters(t *testing.T) {
	var b strings.Builder
	b.WriteString("tasks | ")
	for i := 0; i < MaxFilters+1; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString("status=pending")
	}
	_, err := Parse(b.String())
	require.Error(t, err)
}

func TestParseSortWithDirection(t *testing.T) {
	q, err := Parse("tasks | sort priority desc, created_at asc")
	require.NoError(t, err)
	require.Len(t, q.Stages, 1)
	require.Equal(t, StageSort, q.Stages[0].Kind)
	require.Len(t, q.Stages[0].Sorts, 2)
	assert.Equal(t, "priority", q.Stages[0].Sorts[0].Field)
	assert.True(t, q.Stages[0].Sorts[0].Desc)
	assert.Equal(t, "created_at", q.Stages[0].Sorts[1].Field)
	assert.False(t, q.Stages[0].Sorts[1].Desc)
}

func TestParseQuotedValuePreservesWhitespaceAndPipe(t *testing.T) {
	q, err := Parse(`tasks | name="fix the | bug"`)
	require.NoError(t, err)
	require.Len(t, q.Stages, 1)
	require.Equal(t, []string{"fix the | bug"}, q.Stages[0].Filters[0].Values)
}
