// Package tql implements the pipe-segmented ticket query language of
// spec.md 4.10: a lexer/parser producing a bounded AST, and a compiler
// translating that AST to parameterized SQL against the cache schema.
// Grounded in the general lexer/parser shape used throughout the
// teacher's codebase (a hand-rolled scanner over runes feeding a
// recursive-descent consumer), adapted here to TQL's pipe-delimited,
// whitespace-tokenized segments rather than an expression grammar.
package tql

import (
	"strings"

	"github.com/tixhq/tix/internal/tixerr"
)

// TokenKind enumerates the lexical classes TQL needs.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokPipe
	TokIdent
	TokString
	TokNumber
	TokOp
	TokComma
	TokBang
)

// Token is one lexical unit together with its source text.
type Token struct {
	Kind TokenKind
	Text string
}

// Lexer scans a TQL query string into a flat token slice. Quoting
// preserves embedded whitespace and pipe characters (spec.md 4.10).
type Lexer struct {
	src []rune
	pos int
}

// NewLexer constructs a Lexer over src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src)}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) advance() rune {
	r := l.peek()
	l.pos++
	return r
}

// Tokenize runs the lexer to completion.
func (l *Lexer) Tokenize() ([]Token, error) {
	var out []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == TokEOF {
			return out, nil
		}
	}
}

func (l *Lexer) skipSpace() {
	for l.peek() == ' ' || l.peek() == '\t' || l.peek() == '\n' || l.peek() == '\r' {
		l.advance()
	}
}

func (l *Lexer) next() (Token, error) {
	l.skipSpace()
	c := l.peek()
	switch {
	case c == 0:
		return Token{Kind: TokEOF}, nil
	case c == '|':
		l.advance()
		return Token{Kind: TokPipe, Text: "|"}, nil
	case c == ',':
		l.advance()
		return Token{Kind: TokComma, Text: ","}, nil
	case c == '!':
		l.advance()
		if l.peek() == '=' {
			l.advance()
			return Token{Kind: TokOp, Text: "!="}, nil
		}
		return Token{Kind: TokBang, Text: "!"}, nil
	case c == '=':
		l.advance()
		return Token{Kind: TokOp, Text: "="}, nil
	case c == '~':
		l.advance()
		return Token{Kind: TokOp, Text: "~"}, nil
	case c == '>':
		l.advance()
		if l.peek() == '=' {
			l.advance()
			return Token{Kind: TokOp, Text: ">="}, nil
		}
		return Token{Kind: TokOp, Text: ">"}, nil
	case c == '<':
		l.advance()
		if l.peek() == '=' {
			l.advance()
			return Token{Kind: TokOp, Text: "<="}, nil
		}
		return Token{Kind: TokOp, Text: "<"}, nil
	case c == '"':
		return l.lexQuoted()
	default:
		return l.lexBareword()
	}
}

func (l *Lexer) lexQuoted() (Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		c := l.peek()
		if c == 0 {
			return Token{}, tixerr.New(tixerr.KindParse, "tql.Lexer", "unterminated quoted string")
		}
		if c == '"' {
			l.advance()
			return Token{Kind: TokString, Text: sb.String()}, nil
		}
		if c == '\\' {
			l.advance()
			sb.WriteRune(l.advance())
			continue
		}
		sb.WriteRune(l.advance())
	}
}

// isBarewordStop reports the characters that terminate an unquoted
// token without themselves being consumed.
func isBarewordStop(c rune) bool {
	switch c {
	case 0, '|', ',', '!', '=', '~', '>', '<', ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}

func (l *Lexer) lexBareword() (Token, error) {
	var sb strings.Builder
	for !isBarewordStop(l.peek()) {
		sb.WriteRune(l.advance())
	}
	text := sb.String()
	if text == "" {
		return Token{}, tixerr.New(tixerr.KindParse, "tql.Lexer", "unexpected character %q", string(l.peek()))
	}
	if isNumeric(text) {
		return Token{Kind: TokNumber, Text: text}, nil
	}
	return Token{Kind: TokIdent, Text: text}, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for _, c := range s[start:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
