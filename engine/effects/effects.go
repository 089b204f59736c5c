// Package effects applies effect instructions to character state. Each effect
// is one atomic operation on one field path; the input state is never
// modified.
package effects

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nathoo/statecore/engine/formula"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// Applicator applies effects, resolving formula-valued effect values through
// Formula.
type Applicator struct {
	Formula *formula.Evaluator
	Log     zerolog.Logger
}

// New creates an Applicator.
func New(f *formula.Evaluator, log zerolog.Logger) *Applicator {
	return &Applicator{Formula: f, Log: log}
}

// ApplyAll applies effects in order; each effect sees the previous one's
// output. On error the input state is returned with the error.
func (a *Applicator) ApplyAll(effects []types.Effect, s *types.CharacterState) (*types.CharacterState, error) {
	cur := s
	for i, eff := range effects {
		next, err := a.Apply(eff, cur)
		if err != nil {
			return s, fmt.Errorf("effect %d (%s %s): %w", i, eff.Operation, eff.Target, err)
		}
		cur = next
	}
	return cur, nil
}

// Apply applies one effect and returns the new state.
func (a *Applicator) Apply(eff types.Effect, s *types.CharacterState) (*types.CharacterState, error) {
	if eff.Target == "" {
		return s, fmt.Errorf("%w: effect has no target", state.ErrInvalidPath)
	}
	v := a.ResolveValue(eff.Value, s)
	cur, _ := state.Get(s, eff.Target)

	next, changed := compute(eff.Operation, cur, v)
	if !changed {
		return s, nil
	}
	if f, ok := state.ToFloat(next); ok && (eff.Min != nil || eff.Max != nil) {
		next = clamp(f, eff.Min, eff.Max)
	}

	out, err := state.Set(s, eff.Target, next)
	if err != nil {
		return s, err
	}
	a.Log.Debug().
		Str("target", eff.Target).
		Str("op", string(eff.Operation)).
		Interface("value", next).
		Msg("effect applied")
	return out, nil
}

// ResolveValue evaluates formula strings against s and resolves nested
// objects key by key. Other values are literals.
func (a *Applicator) ResolveValue(v any, s *types.CharacterState) any {
	switch val := v.(type) {
	case string:
		if a.Formula != nil && formula.LooksLikeFormula(val, s) {
			return a.Formula.Evaluate(val, s)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = a.ResolveValue(e, s)
		}
		return out
	default:
		return v
	}
}

// compute returns the new field value; changed is false when the operation
// leaves the field as it was.
func compute(op types.EffectOp, cur, v any) (any, bool) {
	c, curNum := state.ToFloat(cur)
	n, valNum := state.ToFloat(v)
	numeric := curNum && valNum

	switch op {
	case types.OpSet:
		return v, true

	case types.OpAdd:
		if numeric {
			return c + n, true
		}
		if list, ok := state.AsList(cur); ok {
			return append(append([]any{}, list...), v), true
		}
		return v, true

	case types.OpSubtract:
		if numeric {
			return c - n, true
		}
	case types.OpMultiply:
		if numeric {
			return c * n, true
		}
	case types.OpDivide:
		if numeric && n != 0 {
			return c / n, true
		}

	case types.OpAppend:
		if list, ok := state.AsList(cur); ok {
			return append(append([]any{}, list...), v), true
		}
		if obj, ok := cur.(map[string]any); ok {
			add, ok := v.(map[string]any)
			if !ok {
				return nil, false
			}
			merged := make(map[string]any, len(obj)+len(add))
			for k, e := range obj {
				merged[k] = e
			}
			for k, e := range add {
				merged[k] = e
			}
			return merged, true
		}
		if cur == nil {
			return []any{v}, true
		}
		return []any{cur, v}, true

	case types.OpRemove:
		if list, ok := state.AsList(cur); ok {
			kept := make([]any, 0, len(list))
			for _, e := range list {
				if !matches(e, v) {
					kept = append(kept, e)
				}
			}
			return kept, true
		}
		if obj, ok := cur.(map[string]any); ok {
			key, ok := v.(string)
			if !ok {
				return nil, false
			}
			if _, found := obj[key]; !found {
				return nil, false
			}
			out := make(map[string]any, len(obj))
			for k, e := range obj {
				if k != key {
					out[k] = e
				}
			}
			return out, true
		}
	}
	return nil, false
}

// matches compares a list entry to a removal value by value or by id.
func matches(entry, v any) bool {
	if state.Equal(entry, v) {
		return true
	}
	if obj, ok := entry.(map[string]any); ok {
		if id, ok := obj["id"]; ok {
			return state.Equal(id, v)
		}
	}
	return false
}

func clamp(v float64, lo, hi *float64) float64 {
	if lo != nil && v < *lo {
		v = *lo
	}
	if hi != nil && v > *hi {
		v = *hi
	}
	return v
}
