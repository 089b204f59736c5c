package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/nathoo/statecore/engine/dice"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokDice
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind  tokenKind
	pos   int
	text  string
	num   float64
	count int // dice
	sides int // dice
}

// SyntaxError reports a malformed formula.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d: %s", e.Pos, e.Msg)
}

func isIdentStart(r byte) bool {
	return r == '_' || unicode.IsLetter(rune(r))
}

func isIdentPart(r byte) bool {
	return isIdentStart(r) || unicode.IsDigit(rune(r))
}

func isDigit(r byte) bool {
	return r >= '0' && r <= '9'
}

// lex splits a formula into tokens. Dice terms (2d6, d20) are single tokens.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			// NdM dice term.
			if i+1 < len(src) && (src[i] == 'd' || src[i] == 'D') && isDigit(src[i+1]) {
				count, err := strconv.Atoi(src[start:i])
				if err != nil {
					count = 0
				}
				j := i + 1
				for j < len(src) && isDigit(src[j]) {
					j++
				}
				if j < len(src) && isIdentPart(src[j]) {
					return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("malformed dice term %q", src[start:j+1])}
				}
				sides, err := strconv.Atoi(src[i+1 : j])
				if err != nil {
					sides = 0
				}
				if err := dice.CheckGroup(count, sides); err != nil {
					return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("dice term %q: %v", src[start:j], err)}
				}
				toks = append(toks, token{kind: tokDice, pos: start, text: src[start:j], count: count, sides: sides})
				i = j
				continue
			}
			if i < len(src) && src[i] == '.' {
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && isDigit(src[j]) {
					for j < len(src) && isDigit(src[j]) {
						j++
					}
					i = j
				}
			}
			if i < len(src) && isIdentStart(src[i]) {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected %q after number", string(src[i]))}
			}
			v, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, &SyntaxError{Pos: start, Msg: err.Error()}
			}
			toks = append(toks, token{kind: tokNumber, pos: start, text: src[start:i], num: v})

		case isIdentStart(c):
			start := i
			for i < len(src) && (isIdentPart(src[i]) || (src[i] == '.' && i+1 < len(src) && isIdentPart(src[i+1]))) {
				i++
			}
			text := src[start:i]
			if sides, ok := bareDie(text); ok {
				if err := dice.CheckGroup(1, sides); err != nil {
					return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("dice term %q: %v", text, err)}
				}
				toks = append(toks, token{kind: tokDice, pos: start, text: text, count: 1, sides: sides})
				continue
			}
			toks = append(toks, token{kind: tokIdent, pos: start, text: text})

		case strings.IndexByte("+-*/%^", c) >= 0:
			toks = append(toks, token{kind: tokOp, pos: i, text: string(c)})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, pos: i, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, pos: i, text: ")"})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, pos: i, text: ","})
			i++
		default:
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", string(c))}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// bareDie recognizes d20 / D6 written without a count.
func bareDie(text string) (int, bool) {
	if len(text) < 2 || (text[0] != 'd' && text[0] != 'D') {
		return 0, false
	}
	for i := 1; i < len(text); i++ {
		if !isDigit(text[i]) {
			return 0, false
		}
	}
	sides, err := strconv.Atoi(text[1:])
	if err != nil {
		return 0, true
	}
	return sides, true
}
