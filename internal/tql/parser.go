package tql

import (
	"strconv"

	"github.com/tixhq/tix/internal/tixerr"
)

// Parser consumes a flat token slice into a Query AST.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse lexes and parses a full TQL query string.
func Parse(src string) (*Query, error) {
	tokens, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	return p.parseQuery()
}

func (p *Parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *Parser) parseQuery() (*Query, error) {
	const op = "tql.Parse"
	src := p.advance()
	if src.Kind != TokIdent {
		return nil, tixerr.New(tixerr.KindParse, op, "expected source (tasks|issues|notes|tickets), got %q", src.Text)
	}
	switch src.Text {
	case "tasks", "issues", "notes", "tickets":
	default:
		return nil, tixerr.New(tixerr.KindParse, op, "unknown source %q", src.Text)
	}
	q := &Query{Source: src.Text}

	for p.cur().Kind == TokPipe {
		p.advance()
		segment := p.collectSegment()
		if err := p.parseStage(q, segment); err != nil {
			return nil, err
		}
	}
	if p.cur().Kind != TokEOF {
		return nil, tixerr.New(tixerr.KindParse, op, "unexpected trailing token %q", p.cur().Text)
	}
	return q, nil
}

// collectSegment consumes tokens up to (not including) the next pipe
// or EOF.
func (p *Parser) collectSegment() []Token {
	var out []Token
	for p.cur().Kind != TokPipe && p.cur().Kind != TokEOF {
		out = append(out, p.advance())
	}
	return out
}

func (p *Parser) parseStage(q *Query, seg []Token) error {
	const op = "tql.parseStage"
	if len(seg) == 0 {
		return tixerr.New(tixerr.KindParse, op, "empty stage")
	}

	if len(seg) == 1 && seg[0].Kind == TokIdent && seg[0].Text == "all" {
		q.AllScope = true
		return nil
	}
	if len(seg) == 1 && seg[0].Kind == TokIdent && seg[0].Text == "distinct" {
		q.Stages = append(q.Stages, Stage{Kind: StageDistinct})
		return nil
	}

	head := seg[0]
	if head.Kind == TokIdent {
		switch head.Text {
		case "select":
			fields, err := parseFieldList(seg[1:])
			if err != nil {
				return err
			}
			if len(fields) > MaxSelects {
				return tixerr.New(tixerr.KindOverflow, op, "select lists more than %d fields", MaxSelects)
			}
			q.Stages = append(q.Stages, Stage{Kind: StageSelect, Selects: fields})
			return nil
		case "group":
			if len(seg) != 2 || seg[1].Kind != TokIdent {
				return tixerr.New(tixerr.KindParse, op, "group requires exactly one field")
			}
			q.Stages = append(q.Stages, Stage{Kind: StageGroup, GroupBy: seg[1].Text})
			return nil
		case "having":
			filters, err := parseFilterList(seg[1:])
			if err != nil {
				return err
			}
			if len(filters) > MaxHavings {
				return tixerr.New(tixerr.KindOverflow, op, "having lists more than %d predicates", MaxHavings)
			}
			q.Stages = append(q.Stages, Stage{Kind: StageHaving, Havings: filters})
			return nil
		case "count":
			if len(seg) != 1 {
				return tixerr.New(tixerr.KindParse, op, "count takes no field")
			}
			q.Stages = append(q.Stages, Stage{Kind: StageAggregate, Aggregate: Aggregate{Kind: "count"}})
			return nil
		case "count_distinct", "sum", "avg", "min", "max":
			if len(seg) != 2 || seg[1].Kind != TokIdent {
				return tixerr.New(tixerr.KindParse, op, "%s requires exactly one field", head.Text)
			}
			q.Stages = append(q.Stages, Stage{Kind: StageAggregate, Aggregate: Aggregate{Kind: head.Text, Field: seg[1].Text}})
			return nil
		case "sort":
			sorts, err := parseSortList(seg[1:])
			if err != nil {
				return err
			}
			if len(sorts) > MaxSorts {
				return tixerr.New(tixerr.KindOverflow, op, "sort lists more than %d fields", MaxSorts)
			}
			q.Stages = append(q.Stages, Stage{Kind: StageSort, Sorts: sorts})
			return nil
		case "limit":
			n, err := parseSingleInt(seg[1:], "limit")
			if err != nil {
				return err
			}
			q.Stages = append(q.Stages, Stage{Kind: StageLimit, N: n})
			return nil
		case "offset":
			n, err := parseSingleInt(seg[1:], "offset")
			if err != nil {
				return err
			}
			q.Stages = append(q.Stages, Stage{Kind: StageOffset, N: n})
			return nil
		}
	}

	// Otherwise: a filter-list stage.
	filters, err := parseFilterList(seg)
	if err != nil {
		return err
	}
	if len(filters) > MaxFilters {
		return tixerr.New(tixerr.KindOverflow, op, "stage lists more than %d filters", MaxFilters)
	}
	q.Stages = append(q.Stages, Stage{Kind: StageFilter, Filters: filters})
	return nil
}

func parseSingleInt(seg []Token, name string) (int, error) {
	if len(seg) != 1 || seg[0].Kind != TokNumber {
		return 0, tixerr.New(tixerr.KindParse, "tql.parseSingleInt", "%s requires exactly one integer argument", name)
	}
	n, err := strconv.Atoi(seg[0].Text)
	if err != nil {
		return 0, tixerr.New(tixerr.KindParse, "tql.parseSingleInt", "%v", err)
	}
	return n, nil
}

func parseFieldList(seg []Token) ([]string, error) {
	const op = "tql.parseFieldList"
	var fields []string
	expectField := true
	for _, tok := range seg {
		switch {
		case expectField && tok.Kind == TokIdent:
			fields = append(fields, tok.Text)
			expectField = false
		case !expectField && tok.Kind == TokComma:
			expectField = true
		default:
			return nil, tixerr.New(tixerr.KindParse, op, "malformed field list near %q", tok.Text)
		}
	}
	if expectField {
		return nil, tixerr.New(tixerr.KindParse, op, "trailing comma in field list")
	}
	return fields, nil
}

func parseSortList(seg []Token) ([]SortField, error) {
	const op = "tql.parseSortList"
	var sorts []SortField
	i := 0
	for i < len(seg) {
		if seg[i].Kind != TokIdent {
			return nil, tixerr.New(tixerr.KindParse, op, "expected field name near %q", seg[i].Text)
		}
		sf := SortField{Field: seg[i].Text}
		i++
		if i < len(seg) && seg[i].Kind == TokIdent && (seg[i].Text == "asc" || seg[i].Text == "desc") {
			sf.Desc = seg[i].Text == "desc"
			i++
		}
		sorts = append(sorts, sf)
		if i < len(seg) {
			if seg[i].Kind != TokComma {
				return nil, tixerr.New(tixerr.KindParse, op, "expected comma between sort fields, got %q", seg[i].Text)
			}
			i++
		}
	}
	return sorts, nil
}

// parseFilterList parses a sequence of `[!]field op value` predicates,
// space-separated within one pipe segment (spec.md 4.10).
func parseFilterList(seg []Token) ([]Filter, error) {
	const op = "tql.parseFilterList"
	var filters []Filter
	i := 0
	for i < len(seg) {
		negated := false
		if seg[i].Kind == TokBang {
			negated = true
			i++
		}
		if i >= len(seg) || seg[i].Kind != TokIdent {
			return nil, tixerr.New(tixerr.KindParse, op, "expected field name")
		}
		field := seg[i].Text
		i++
		if i >= len(seg) || seg[i].Kind != TokOp {
			return nil, tixerr.New(tixerr.KindParse, op, "expected operator after field %q", field)
		}
		opTok := seg[i].Text
		i++

		// A value is a single bareword/quoted-string/number, optionally
		// extended into a comma-separated (IN) chain. Absent entirely
		// (next token is EOF or another filter's leading identifier)
		// means IS NULL / IS NOT NULL.
		var values []string
		isNull := false
		isIn := false
		hasValue := i < len(seg) && (seg[i].Kind == TokIdent || seg[i].Kind == TokString || seg[i].Kind == TokNumber)
		if hasValue && seg[i].Kind == TokIdent && i+1 < len(seg) && seg[i+1].Kind == TokOp {
			hasValue = false // an identifier followed by an operator starts the next filter
		}
		if hasValue {
			values = append(values, seg[i].Text)
			i++
			for i+1 < len(seg) && seg[i].Kind == TokComma {
				isIn = true
				i++
				values = append(values, seg[i].Text)
				i++
			}
		} else {
			isNull = true
		}

		filters = append(filters, Filter{
			Field:   field,
			Negated: negated,
			Op:      opTok,
			Values:  values,
			IsNull:  isNull,
			IsIn:    isIn,
		})
	}
	return filters, nil
}
