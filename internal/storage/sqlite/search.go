package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"unicode"

	"github.com/tixhq/tix/internal/types"
)

const (
	weightName   = 3.0
	weightAccept = 2.0
	weightNotes  = 1.0
	maxTokens    = 64
	searchLimit  = 20
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "and": {}, "or": {},
	"is": {}, "it": {}, "for": {}, "on": {}, "with": {}, "as": {}, "at": {}, "by": {},
}

// tokenize splits on whitespace and punctuation, lowercases, drops
// stop-words and tokens shorter than 2 characters, and caps the
// result at maxTokens, per spec.md 4.9.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(f)
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
		if len(out) >= maxTokens {
			break
		}
	}
	return out
}

// reindexKeywords recomputes the weighted keyword rows for a ticket
// from its name/accept/notes fields.
func reindexKeywords(ctx context.Context, conn *sql.Conn, tk *types.Ticket) error {
	if _, err := conn.ExecContext(ctx, `DELETE FROM keywords WHERE ticket_id = ?`, tk.ID); err != nil {
		return wrapErr("sqlite.reindexKeywords", err)
	}

	weights := make(map[string]float64)
	accumulate := func(text string, weight float64) {
		for _, tok := range tokenize(text) {
			weights[tok] += weight
		}
	}
	accumulate(tk.Name, weightName)
	accumulate(tk.Accept, weightAccept)
	accumulate(tk.Notes, weightNotes)

	for kw, w := range weights {
		if _, err := conn.ExecContext(ctx, `INSERT INTO keywords (ticket_id, keyword, weight) VALUES (?,?,?)`, tk.ID, kw, w); err != nil {
			return wrapErr("sqlite.reindexKeywords", err)
		}
	}
	return nil
}

// SearchResult is one ranked hit.
type SearchResult struct {
	TicketID string
	Score    float64
}

// Search tokenizes query and returns at most searchLimit ticket ids
// ranked by summed keyword weight, per spec.md 4.9.
func (s *Store) Search(ctx context.Context, query string) ([]SearchResult, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tokens)), ",")
	args := make([]any, 0, len(tokens)+1)
	for _, t := range tokens {
		args = append(args, t)
	}
	args = append(args, searchLimit)

	q := `
SELECT ticket_id, SUM(weight) AS score
FROM keywords
WHERE keyword IN (` + placeholders + `)
GROUP BY ticket_id
ORDER BY score DESC
LIMIT ?
`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapErr("sqlite.Search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.TicketID, &r.Score); err != nil {
			return nil, wrapErr("sqlite.Search", err)
		}
		results = append(results, r)
	}
	return results, wrapErr("sqlite.Search", rows.Err())
}
