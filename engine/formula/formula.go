// Package formula evaluates arithmetic expressions over a character's stats.
// The grammar is deliberately small: numbers, stat references (dotted paths
// allowed), + - * / % ^, parentheses, a fixed set of math functions and dice
// terms such as 2d6 or d20, which are rolled through a dice.Source.
package formula

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nathoo/statecore/engine/dice"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// Roll records one dice term rolled while evaluating a formula.
type Roll struct {
	Notation string `json:"notation"`
	Results  []int  `json:"results"`
	Total    int    `json:"total"`
}

// Result is the outcome of a successful evaluation.
type Result struct {
	Expression string  `json:"expression"`
	Value      float64 `json:"value"`
	Rolls      []Roll  `json:"rolls,omitempty"`
}

// Validation reports whether a formula parses.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Evaluator evaluates formulas, rolling dice terms from Dice.
type Evaluator struct {
	Dice dice.Source
	Log  zerolog.Logger
}

// New creates an Evaluator. A nil src gets a generator seeded with 1.
func New(src dice.Source, log zerolog.Logger) *Evaluator {
	if src == nil {
		src = dice.NewRNG(1)
	}
	return &Evaluator{Dice: src, Log: log}
}

// Eval evaluates formula against the character and returns the typed result.
// Syntax errors, unknown variables, division by zero and non-finite results
// are errors.
func (e *Evaluator) Eval(formula string, s *types.CharacterState) (Result, error) {
	root, err := parse(formula)
	if err != nil {
		return Result{}, err
	}
	ev := &evaluator{scope: Scope(s), src: e.Dice}
	v, err := ev.eval(root)
	if err != nil {
		return Result{}, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Result{}, fmt.Errorf("%w: result is %v", ErrNotANumber, v)
	}
	return Result{Expression: formula, Value: v, Rolls: ev.rolls}, nil
}

// Evaluate is Eval with failures logged and coerced to 0.
func (e *Evaluator) Evaluate(formula string, s *types.CharacterState) float64 {
	res, err := e.Eval(formula, s)
	if err != nil {
		e.Log.Warn().Str("formula", formula).Err(err).Msg("formula evaluation failed, using 0")
		return 0
	}
	return res.Value
}

// Validate parses formula without evaluating it.
func Validate(formula string) Validation {
	if _, err := parse(formula); err != nil {
		return Validation{Error: err.Error()}
	}
	return Validation{Valid: true}
}

// Average returns the expected total of dice notation without rolling.
func Average(notation string) (float64, error) {
	n, err := dice.Parse(notation)
	if err != nil {
		return 0, err
	}
	return n.Average(), nil
}

// Range returns the smallest and largest totals of dice notation.
func Range(notation string) (lo, hi float64, err error) {
	n, err := dice.Parse(notation)
	if err != nil {
		return 0, 0, err
	}
	lo, hi = n.Range()
	return lo, hi, nil
}

// LooksLikeFormula reports whether a string value should be evaluated as a
// formula rather than stored literally. The string must parse, and then
// either have a formula shape (see HasFormulaShape), be a lone dice term, or
// be a lone variable holding a number or bool. Variables are not resolved
// otherwise: "STR + bonus" is a formula even when bonus is unknown, and
// Evaluate turns it into 0.
func LooksLikeFormula(v any, s *types.CharacterState) bool {
	str, ok := v.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return false
	}
	root, err := parse(str)
	if err != nil {
		return false
	}
	if HasFormulaShape(str) {
		return true
	}
	switch n := root.(type) {
	case diceNode:
		return true
	case varNode:
		raw, ok := resolve(Scope(s), n.path)
		if !ok {
			return false
		}
		if _, isBool := raw.(bool); isBool {
			return true
		}
		_, numeric := state.ToFloat(raw)
		return numeric
	}
	return false
}

// HasFormulaShape reports whether s contains an arithmetic operator or a
// parenthesis. A '-' joining two letters, as in "fire-resistant", is part
// of a word.
func HasFormulaShape(s string) bool {
	for i, c := range s {
		switch c {
		case '+', '*', '/', '%', '^', '(', ')':
			return true
		case '-':
			if i > 0 && i < len(s)-1 && isWordByte(s[i-1]) && isWordByte(s[i+1]) {
				continue
			}
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// IsSyntaxError reports whether err came from parsing.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}
