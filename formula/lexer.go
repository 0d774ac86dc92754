package formula

import (
	"strconv"
	"strings"
)

type tokenType uint8

const (
	tokEOF tokenType = iota
	tokNumber
	tokCell
	tokIdent
	tokComma
	tokColon
	tokLParen
	tokRParen
	tokOp
)

type token struct {
	typ tokenType
	lit string
}

// lex tokenizes a formula expression (the text after the leading '=').
// It recognizes numbers, A1/$A$1-style cell references, identifiers
// (function names), '(' ')' ',' ':' and the arithmetic operators.
func lex(expr string) ([]token, error) {
	var toks []token
	i := 0
	n := len(expr)

	for i < n {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == ':':
			toks = append(toks, token{tokColon, ":"})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '^':
			toks = append(toks, token{tokOp, string(c)})
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < n && (expr[i] >= '0' && expr[i] <= '9' || expr[i] == '.') {
				i++
			}
			lit := expr[start:i]
			if _, err := strconv.ParseFloat(lit, 64); err != nil {
				return nil, &SyntaxError{Expr: expr, Msg: "invalid number literal " + lit}
			}
			toks = append(toks, token{tokNumber, lit})
		case isAlphaDollar(c):
			start := i
			i++
			for i < n && (isAlphaDollar(expr[i]) || (expr[i] >= '0' && expr[i] <= '9')) {
				i++
			}
			lit := expr[start:i]
			if looksLikeCell(lit) {
				toks = append(toks, token{tokCell, lit})
			} else {
				toks = append(toks, token{tokIdent, lit})
			}
		default:
			return nil, &SyntaxError{Expr: expr, Msg: "unexpected character " + string(c)}
		}
	}

	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isAlphaDollar(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '$'
}

// looksLikeCell reports whether lit matches the $?LETTERS$?DIGITS shape of
// a cell reference, as opposed to a bare function identifier.
func looksLikeCell(lit string) bool {
	s := strings.TrimPrefix(lit, "$")
	i := 0
	for i < len(s) && ((s[i] >= 'A' && s[i] <= 'Z') || (s[i] >= 'a' && s[i] <= 'z')) {
		i++
	}
	if i == 0 {
		return false
	}
	rest := s[i:]
	rest = strings.TrimPrefix(rest, "$")
	if rest == "" {
		return false
	}
	for _, d := range rest {
		if d < '0' || d > '9' {
			return false
		}
	}
	return true
}

// parseCellRef parses a token literal such as "A1" or "$B$12" into a
// Position, stripping absolute-reference '$' markers (this evaluator has
// no notion of relative vs. absolute copy-paste, so both parse the same).
func parseCellRef(lit string) (Position, error) {
	s := strings.ReplaceAll(lit, "$", "")
	i := 0
	for i < len(s) && ((s[i] >= 'A' && s[i] <= 'Z') || (s[i] >= 'a' && s[i] <= 'z')) {
		i++
	}
	if i == 0 || i == len(s) {
		return Position{}, &SyntaxError{Expr: lit, Msg: "invalid cell reference"}
	}
	letters := strings.ToUpper(s[:i])
	row, err := strconv.Atoi(s[i:])
	if err != nil || row < 1 {
		return Position{}, &SyntaxError{Expr: lit, Msg: "invalid cell reference"}
	}
	col := 0
	for _, ch := range letters {
		col = col*26 + int(ch-'A'+1)
	}
	return Position{Row: row - 1, Col: col - 1}, nil
}
