package formula

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nathoo/statecore/engine/dice"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

var (
	// ErrDivisionByZero is returned for x/0 and x%0.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrNotANumber is returned when a result or variable is not numeric.
	ErrNotANumber = errors.New("not a number")
)

// UnknownVariableError reports an identifier absent from the scope.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown variable %q", e.Name)
}

// Scope builds the evaluation scope for a character: every stat as a
// top-level variable, health/maxHealth/mana/maxMana aliases, and structured
// stats, resources, custom and character objects.
func Scope(s *types.CharacterState) map[string]any {
	scope := map[string]any{}
	if s == nil {
		return scope
	}
	for k, v := range s.Stats {
		scope[k] = v
	}

	current := make(map[string]any, len(s.Resources.Current))
	for k, v := range s.Resources.Current {
		current[k] = v
	}
	maxes := make(map[string]any, len(s.Resources.Max))
	for k, v := range s.Resources.Max {
		maxes[k] = v
	}
	if v, ok := s.Resources.Current["health"]; ok {
		scope["health"] = v
	}
	if v, ok := s.Resources.Max["health"]; ok {
		scope["maxHealth"] = v
	}
	if v, ok := s.Resources.Current["mana"]; ok {
		scope["mana"] = v
	}
	if v, ok := s.Resources.Max["mana"]; ok {
		scope["maxMana"] = v
	}

	resources := map[string]any{"current": current, "max": maxes}
	stats := map[string]any(s.Stats)
	scope["stats"] = stats
	scope["resources"] = resources
	scope["custom"] = map[string]any(s.Custom)
	scope["character"] = map[string]any{
		"id":        s.ID,
		"name":      s.Name,
		"stats":     stats,
		"resources": resources,
		"custom":    map[string]any(s.Custom),
	}
	return scope
}

// evaluator walks a parsed formula.
type evaluator struct {
	scope map[string]any
	src   dice.Source
	rolls []Roll
}

func (ev *evaluator) eval(n node) (float64, error) {
	switch v := n.(type) {
	case numberNode:
		return v.value, nil

	case varNode:
		raw, ok := resolve(ev.scope, v.path)
		if !ok {
			return 0, &UnknownVariableError{Name: v.path}
		}
		f, ok := state.ToFloat(raw)
		if !ok {
			if b, isBool := raw.(bool); isBool {
				if b {
					return 1, nil
				}
				return 0, nil
			}
			return 0, fmt.Errorf("%w: %s is %T", ErrNotANumber, v.path, raw)
		}
		return f, nil

	case diceNode:
		if ev.src == nil {
			return 0, fmt.Errorf("no dice source for %s", v.text)
		}
		roll, err := dice.RollGroup(ev.src, v.count, v.sides)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", v.text, err)
		}
		ev.rolls = append(ev.rolls, Roll{Notation: v.text, Results: roll.Results, Total: roll.Total})
		return float64(roll.Total), nil

	case unaryNode:
		x, err := ev.eval(v.x)
		if err != nil {
			return 0, err
		}
		if v.op == "-" {
			return -x, nil
		}
		return x, nil

	case binaryNode:
		l, err := ev.eval(v.l)
		if err != nil {
			return 0, err
		}
		r, err := ev.eval(v.r)
		if err != nil {
			return 0, err
		}
		switch v.op {
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "/":
			if r == 0 {
				return 0, ErrDivisionByZero
			}
			return l / r, nil
		case "%":
			if r == 0 {
				return 0, ErrDivisionByZero
			}
			return math.Mod(l, r), nil
		case "^":
			return math.Pow(l, r), nil
		}
		return 0, fmt.Errorf("unknown operator %q", v.op)

	case callNode:
		fn, ok := functions[strings.ToLower(v.name)]
		if !ok {
			return 0, fmt.Errorf("unknown function %q", v.name)
		}
		args := make([]float64, len(v.args))
		for i, a := range v.args {
			x, err := ev.eval(a)
			if err != nil {
				return 0, err
			}
			args[i] = x
		}
		if fn.arity >= 0 && len(args) != fn.arity {
			return 0, fmt.Errorf("%s expects %d argument(s), got %d", v.name, fn.arity, len(args))
		}
		if fn.arity < 0 && len(args) == 0 {
			return 0, fmt.Errorf("%s expects at least one argument", v.name)
		}
		return fn.call(args), nil
	}
	return 0, fmt.Errorf("unknown node %T", n)
}

// resolve walks a dotted path through nested scope objects.
func resolve(scope map[string]any, path string) (any, bool) {
	var cur any = scope
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

type function struct {
	arity int // -1: variadic
	call  func(args []float64) float64
}

var functions = map[string]function{
	"abs":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"floor": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"round": {1, func(a []float64) float64 { return math.Round(a[0]) }},
	"sqrt":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"log":   {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"pow":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"clamp": {3, func(a []float64) float64 { return math.Min(math.Max(a[0], a[1]), a[2]) }},
	"min": {-1, func(a []float64) float64 {
		m := a[0]
		for _, x := range a[1:] {
			m = math.Min(m, x)
		}
		return m
	}},
	"max": {-1, func(a []float64) float64 {
		m := a[0]
		for _, x := range a[1:] {
			m = math.Max(m, x)
		}
		return m
	}},
}
