package tql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tixhq/tix/internal/tixerr"
	"github.com/tixhq/tix/internal/types"
)

// BindKind tags a compiled parameter so the caller can choose the
// right driver-level type (spec.md 4.10: "a parallel list of bind
// values tagged by kind").
type BindKind int

const (
	BindInt BindKind = iota
	BindFloat
	BindText
)

// Bind is one compiled parameter value.
type Bind struct {
	Kind  BindKind
	Int   int64
	Float float64
	Text  string
}

func bindText(s string) Bind { return Bind{Kind: BindText, Text: s} }
func bindInt(n int64) Bind   { return Bind{Kind: BindInt, Int: n} }

// Compiled is the output of compiling a Query: parameterized SQL plus
// its bind list, and enough metadata to shape the JSON output.
type Compiled struct {
	SQL         string
	Binds       []Bind
	IsAggregate bool
	Columns     []string // output column aliases, in order
}

const maxSQLBuf = types.MaxSQLBuf
const maxBinds = types.MaxBinds

var ticketColumns = []string{
	"id", "type", "status", "priority", "name", "spec", "notes", "accept", "done_at",
	"branch", "parent", "created_from", "supersedes", "created_at", "updated_at",
}

// Compile translates a parsed Query into parameterized SQL against the
// cache schema (spec.md 4.10).
func Compile(q *Query) (*Compiled, error) {
	const op = "tql.Compile"

	metaFields, err := q.MetaJoinFields()
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	var binds []Bind

	selectFields, aggregates, groupField, distinct, havings, sorts, limit, offset, filters, err := flattenStages(q)
	if err != nil {
		return nil, err
	}

	isAggregate := len(aggregates) > 0 || groupField != ""

	sb.WriteString("SELECT ")
	var columns []string
	if distinct {
		sb.WriteString("DISTINCT ")
	}
	switch {
	case isAggregate:
		var parts []string
		if groupField != "" {
			col, err := resolveFieldExpr(groupField, metaFields)
			if err != nil {
				return nil, err
			}
			parts = append(parts, col+" AS group_key")
			columns = append(columns, "group_key")
		}
		for _, agg := range aggregates {
			expr, alias, err := aggregateExpr(agg, metaFields)
			if err != nil {
				return nil, err
			}
			parts = append(parts, expr)
			columns = append(columns, alias)
		}
		if len(parts) == 0 {
			parts = append(parts, "COUNT(*) AS count")
			columns = append(columns, "count")
		}
		sb.WriteString(strings.Join(parts, ", "))
	case len(selectFields) > 0:
		var parts []string
		for _, f := range selectFields {
			col, err := resolveFieldExpr(f, metaFields)
			if err != nil {
				return nil, err
			}
			parts = append(parts, col+" AS "+sqlAlias(f))
			columns = append(columns, f)
		}
		sb.WriteString(strings.Join(parts, ", "))
	default:
		var parts []string
		for _, f := range ticketColumns {
			parts = append(parts, "tickets."+f)
			columns = append(columns, f)
		}
		sb.WriteString(strings.Join(parts, ", "))
	}

	sb.WriteString(" FROM tickets")
	for _, key := range metaFields {
		sb.WriteString(fmt.Sprintf(" LEFT JOIN ticket_meta AS meta_%s ON meta_%s.ticket_id = tickets.id AND meta_%s.key = ?", sqlIdent(key), sqlIdent(key), sqlIdent(key)))
		binds = append(binds, bindText(key))
	}

	var whereParts []string

	if q.Source != "tickets" {
		ttype, _ := types.ParseTicketType(strings.TrimSuffix(q.Source, "s"))
		whereParts = append(whereParts, "tickets.type = ?")
		binds = append(binds, bindInt(int64(ttype)))
	}

	if !q.AllScope && !q.HasExplicitStatusFilter() {
		whereParts = append(whereParts, fmt.Sprintf("tickets.status < %d", int(types.StatusAccepted)))
	}

	labelJoined := groupField == "label"
	for _, f := range selectFields {
		if f == "label" {
			labelJoined = true
		}
	}
	for _, s := range sorts {
		if s.Field == "label" {
			labelJoined = true
		}
	}
	for _, f := range filters {
		clause, needsLabelJoin, err := compileFilter(f, metaFields, &binds)
		if err != nil {
			return nil, err
		}
		if needsLabelJoin && !f.Negated {
			labelJoined = true
		}
		whereParts = append(whereParts, clause)
	}
	if labelJoined {
		sb.WriteString(" JOIN ticket_labels ON ticket_labels.ticket_id = tickets.id")
	}

	if len(whereParts) > 0 {
		sb.WriteString(" WHERE " + strings.Join(whereParts, " AND "))
	}

	if groupField != "" {
		col, err := resolveFieldExpr(groupField, metaFields)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" GROUP BY " + col)
	}

	if len(havings) > 0 {
		var parts []string
		for _, h := range havings {
			clause, _, err := compileFilter(h, metaFields, &binds)
			if err != nil {
				return nil, err
			}
			parts = append(parts, clause)
		}
		sb.WriteString(" HAVING " + strings.Join(parts, " AND "))
	}

	if len(sorts) > 0 {
		var parts []string
		for _, s := range sorts {
			col, err := resolveFieldExpr(s.Field, metaFields)
			if err != nil {
				return nil, err
			}
			dir := "ASC"
			if s.Desc {
				dir = "DESC"
			}
			parts = append(parts, col+" "+dir)
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	if limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(limit))
	}
	if offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(offset))
	}

	sql := sb.String()
	if len(sql) > maxSQLBuf {
		return nil, tixerr.New(tixerr.KindOverflow, op, "compiled SQL exceeds %d bytes", maxSQLBuf)
	}
	if len(binds) > maxBinds {
		return nil, tixerr.New(tixerr.KindOverflow, op, "query has more than %d bind parameters", maxBinds)
	}

	return &Compiled{SQL: sql, Binds: binds, IsAggregate: isAggregate, Columns: columns}, nil
}

func flattenStages(q *Query) (selects []string, aggregates []Aggregate, groupField string, distinct bool, havings []Filter, sorts []SortField, limit, offset int, filters []Filter, err error) {
	var sortsOut []SortField
	var havingsOut []Filter
	for _, st := range q.Stages {
		switch st.Kind {
		case StageFilter:
			filters = append(filters, st.Filters...)
		case StageSelect:
			selects = append(selects, st.Selects...)
		case StageGroup:
			groupField = st.GroupBy
		case StageDistinct:
			distinct = true
		case StageHaving:
			havingsOut = append(havingsOut, st.Havings...)
		case StageAggregate:
			aggregates = append(aggregates, st.Aggregate)
		case StageSort:
			sortsOut = append(sortsOut, st.Sorts...)
		case StageLimit:
			limit = st.N
		case StageOffset:
			offset = st.N
		}
	}
	return selects, aggregates, groupField, distinct, havingsOut, sortsOut, limit, offset, filters, nil
}

func aggregateExpr(agg Aggregate, metaFields []string) (expr, alias string, err error) {
	switch agg.Kind {
	case "count":
		return "COUNT(*) AS count", "count", nil
	case "count_distinct":
		col, err := resolveFieldExpr(agg.Field, metaFields)
		if err != nil {
			return "", "", err
		}
		a := "count_distinct_" + sqlAlias(agg.Field)
		return fmt.Sprintf("COUNT(DISTINCT %s) AS %s", col, a), a, nil
	case "sum", "avg", "min", "max":
		col, err := resolveFieldExpr(agg.Field, metaFields)
		if err != nil {
			return "", "", err
		}
		a := agg.Kind + "_" + sqlAlias(agg.Field)
		return fmt.Sprintf("%s(%s) AS %s", strings.ToUpper(agg.Kind), col, a), a, nil
	default:
		return "", "", tixerr.New(tixerr.KindParse, "tql.aggregateExpr", "unknown aggregate %q", agg.Kind)
	}
}

// resolveFieldExpr maps a TQL field name to its SQL column expression,
// including meta.<key> and label indirections (spec.md 4.10).
func resolveFieldExpr(field string, metaFields []string) (string, error) {
	if strings.HasPrefix(field, "meta.") {
		key := field[len("meta."):]
		return fmt.Sprintf("COALESCE(meta_%s.value_text, meta_%s.value_num)", sqlIdent(key), sqlIdent(key)), nil
	}
	if field == "label" {
		return "ticket_labels.label", nil
	}
	if !isKnownTicketField(field) {
		return "", tixerr.New(tixerr.KindInvalidArg, "tql.resolveFieldExpr", "unknown field %q", field)
	}
	return "tickets." + field, nil
}

func isKnownTicketField(field string) bool {
	for _, f := range ticketColumns {
		if f == field {
			return true
		}
	}
	switch field {
	case "author", "completed_at", "cost", "tokens_in", "tokens_out", "iterations", "model", "retries", "kill_count", "resolved_at", "compacted_at":
		return true
	default:
		return false
	}
}

func sqlIdent(s string) string {
	var sb strings.Builder
	for _, c := range s {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			sb.WriteRune(c)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func sqlAlias(field string) string {
	return sqlIdent(strings.TrimPrefix(field, "meta."))
}

// compileFilter translates one Filter into a SQL boolean expression
// and appends its bind values, applying enum sugar and LIKE rewriting
// (spec.md 4.10). It reports whether the label table needs joining.
func compileFilter(f Filter, metaFields []string, binds *[]Bind) (clause string, needsLabelJoin bool, err error) {
	const op = "tql.compileFilter"

	if f.Field == "label" {
		if f.IsNull {
			return "", false, tixerr.New(tixerr.KindParse, op, "label filter requires a value")
		}
		if f.Negated {
			placeholders := make([]string, len(f.Values))
			for i, v := range f.Values {
				placeholders[i] = "?"
				*binds = append(*binds, bindText(v))
			}
			return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM ticket_labels WHERE ticket_labels.ticket_id = tickets.id AND ticket_labels.label IN (%s))", strings.Join(placeholders, ",")), false, nil
		}
		placeholders := make([]string, len(f.Values))
		for i, v := range f.Values {
			placeholders[i] = "?"
			*binds = append(*binds, bindText(v))
		}
		return fmt.Sprintf("ticket_labels.label IN (%s)", strings.Join(placeholders, ",")), true, nil
	}

	col, err := resolveFieldExpr(f.Field, metaFields)
	if err != nil {
		return "", false, err
	}

	if f.IsNull {
		if (f.Op == "=") != f.Negated {
			return col + " IS NULL", false, nil
		}
		return col + " IS NOT NULL", false, nil
	}

	values, err := applyEnumSugar(f.Field, f.Values)
	if err != nil {
		return "", false, err
	}

	if f.IsIn || len(values) > 1 {
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			*binds = append(*binds, coerceBind(f.Field, v))
		}
		in := fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ","))
		if f.Negated {
			return "NOT (" + in + ")", false, nil
		}
		return in, false, nil
	}

	sqlOp, err := sqlOperator(f.Op, f.Negated)
	if err != nil {
		return "", false, err
	}
	if f.Op == "~" {
		pattern := strings.NewReplacer("*", "%", "?", "_").Replace(values[0])
		*binds = append(*binds, bindText(pattern))
		return fmt.Sprintf("%s %s ?", col, sqlOp), false, nil
	}

	*binds = append(*binds, coerceBind(f.Field, values[0]))
	return fmt.Sprintf("%s %s ?", col, sqlOp), false, nil
}

func sqlOperator(op string, negated bool) (string, error) {
	base := map[string]string{
		"=": "=", "!=": "!=", ">": ">", "<": "<", ">=": ">=", "<=": "<=", "~": "LIKE",
	}
	s, ok := base[op]
	if !ok {
		return "", tixerr.New(tixerr.KindParse, "tql.sqlOperator", "unknown operator %q", op)
	}
	if !negated {
		return s, nil
	}
	switch s {
	case "=":
		return "!=", nil
	case "!=":
		return "=", nil
	case ">":
		return "<=", nil
	case "<":
		return ">=", nil
	case ">=":
		return "<", nil
	case "<=":
		return ">", nil
	case "LIKE":
		return "NOT LIKE", nil
	default:
		return s, nil
	}
}

// applyEnumSugar translates status/type/priority enum words to their
// integer codes (spec.md 4.10), leaving all other fields' values
// untouched.
func applyEnumSugar(field string, values []string) ([]string, error) {
	var table map[string]int
	switch field {
	case "status":
		table = map[string]int{"pending": int(types.StatusPending), "done": int(types.StatusDone), "accepted": int(types.StatusAccepted), "rejected": int(types.StatusRejected), "deleted": int(types.StatusDeleted)}
	case "type":
		table = map[string]int{"task": int(types.TypeTask), "issue": int(types.TypeIssue), "note": int(types.TypeNote)}
	case "priority":
		table = map[string]int{"none": int(types.PriorityNone), "low": int(types.PriorityLow), "medium": int(types.PriorityMedium), "high": int(types.PriorityHigh)}
	default:
		return values, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		if code, ok := table[v]; ok {
			out[i] = strconv.Itoa(code)
		} else {
			out[i] = v
		}
	}
	return out, nil
}

// coerceBind guesses the SQL type for a value: known numeric ticket
// fields bind as integers, or as floats when the value is not integral;
// everything else binds as text.
func coerceBind(field, value string) Bind {
	switch field {
	case "status", "type", "priority", "created_at", "updated_at", "resolved_at", "compacted_at", "cost", "tokens_in", "tokens_out", "iterations", "retries", "kill_count":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return bindInt(n)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return Bind{Kind: BindFloat, Float: f}
		}
	}
	return bindText(value)
}
