package tql

import (
	"github.com/tixhq/tix/internal/tixerr"
	"github.com/tixhq/tix/internal/types"
)

// Bounds on AST array sizes, per spec.md 4.10/5.
const (
	MaxFilters    = types.MaxTQLFilter
	MaxSelects    = types.MaxTQLSelect
	MaxSorts      = types.MaxTQLSort
	MaxAggregates = types.MaxTQLAgg
	MaxHavings    = types.MaxTQLHaving
	MaxMetaJoins  = types.MaxTQLJoin
)

// Filter is one `[!]field op value` predicate.
type Filter struct {
	Field    string
	Negated  bool
	Op       string // = != > < >= <= ~
	Values   []string
	IsNull   bool // empty value after =/!=
	IsIn     bool // comma-separated value
}

// SortField is one `field [asc|desc]` entry.
type SortField struct {
	Field string
	Desc  bool
}

// Aggregate is one `count|count_distinct|sum|avg|min|max [field]` stage.
type Aggregate struct {
	Kind  string // count, count_distinct, sum, avg, min, max
	Field string
}

// StageKind discriminates the stage variants a query segment may be.
type StageKind int

const (
	StageFilter StageKind = iota
	StageSelect
	StageGroup
	StageDistinct
	StageHaving
	StageAggregate
	StageSort
	StageLimit
	StageOffset
)

// Stage is one pipe-delimited segment of a query.
type Stage struct {
	Kind      StageKind
	Filters   []Filter
	Havings   []Filter
	Selects   []string
	GroupBy   string
	Aggregate Aggregate
	Sorts     []SortField
	N         int
}

// Query is the full parsed pipeline: a source plus an ordered list of
// stages (spec.md 4.10's grammar).
type Query struct {
	Source   string // tasks | issues | notes | tickets
	AllScope bool   // bare "all" stage: bypass the default status<accepted scope
	Stages   []Stage
}

// MetaJoinFields returns, bounded at MaxMetaJoins, the distinct
// `meta.<key>` field names referenced anywhere in the query -- each
// needs its own LEFT JOIN against ticket_meta (spec.md 4.10).
func (q *Query) MetaJoinFields() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(field string) error {
		if len(field) <= 5 || field[:5] != "meta." {
			return nil
		}
		key := field[5:]
		if _, ok := seen[key]; ok {
			return nil
		}
		if len(out) >= MaxMetaJoins {
			return tixerr.New(tixerr.KindOverflow, "tql.MetaJoinFields", "more than %d distinct meta. fields referenced", MaxMetaJoins)
		}
		seen[key] = struct{}{}
		out = append(out, key)
		return nil
	}
	for _, st := range q.Stages {
		for _, f := range st.Filters {
			if err := add(f.Field); err != nil {
				return nil, err
			}
		}
		for _, f := range st.Selects {
			if err := add(f); err != nil {
				return nil, err
			}
		}
		for _, s := range st.Sorts {
			if err := add(s.Field); err != nil {
				return nil, err
			}
		}
		if st.GroupBy != "" {
			if err := add(st.GroupBy); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// HasExplicitStatusFilter reports whether any filter stage already
// constrains the status field, in which case the default
// "status < accepted" scope is not applied (spec.md 4.10).
func (q *Query) HasExplicitStatusFilter() bool {
	for _, st := range q.Stages {
		for _, f := range st.Filters {
			if f.Field == "status" {
				return true
			}
		}
	}
	return false
}
