// Package rules evaluates conditions and orchestrates rule execution:
// priority ordering, effect application and one-level rule chaining.
package rules

import (
	"strings"

	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// Evaluate evaluates an optional condition tree. A nil tree is true.
func Evaluate(c *types.Condition, s *types.CharacterState) bool {
	if c == nil {
		return true
	}
	if c.IsGroup() {
		return EvalGroup(*c, s)
	}
	return EvalCondition(*c, s)
}

// EvalConditions returns true if all conditions pass (AND logic).
// An empty condition list is vacuously true.
func EvalConditions(conditions []types.Condition, s *types.CharacterState) bool {
	for _, c := range conditions {
		if !Evaluate(&c, s) {
			return false
		}
	}
	return true
}

// EvalGroup folds a group's children with ALL, ANY or NONE. Unknown group
// operators are false.
func EvalGroup(g types.Condition, s *types.CharacterState) bool {
	var result bool
	switch strings.ToUpper(g.Operator) {
	case types.LogicAll, "":
		result = true
		for i := range g.Conditions {
			if !Evaluate(&g.Conditions[i], s) {
				result = false
				break
			}
		}
	case types.LogicAny:
		for i := range g.Conditions {
			if Evaluate(&g.Conditions[i], s) {
				result = true
				break
			}
		}
	case types.LogicNone:
		result = true
		for i := range g.Conditions {
			if Evaluate(&g.Conditions[i], s) {
				result = false
				break
			}
		}
	default:
		return false
	}
	if g.Negate {
		return !result
	}
	return result
}

// EvalCondition evaluates a single field predicate against the state.
func EvalCondition(c types.Condition, s *types.CharacterState) bool {
	actual, _ := state.Get(s, c.Field)
	result := compare(c.Operator, actual, c.Value)
	if c.Negate {
		return !result
	}
	return result
}

func compare(op string, actual, expected any) bool {
	switch op {
	case "equals", "==", "=":
		return state.Equal(actual, expected)
	case "notEquals", "!=":
		return !state.Equal(actual, expected)

	case "greaterThan", ">":
		return ordered(actual, expected, func(a, b float64) bool { return a > b })
	case "lessThan", "<":
		return ordered(actual, expected, func(a, b float64) bool { return a < b })
	case "greaterThanOrEqual", ">=":
		return ordered(actual, expected, func(a, b float64) bool { return a >= b })
	case "lessThanOrEqual", "<=":
		return ordered(actual, expected, func(a, b float64) bool { return a <= b })

	case "contains":
		return contains(actual, expected)
	case "notContains":
		return !contains(actual, expected)

	case "in":
		list, ok := state.AsList(expected)
		return ok && member(list, actual)
	case "notIn":
		list, ok := state.AsList(expected)
		return ok && !member(list, actual)

	default:
		return false
	}
}

// ordered is false unless both operands are numbers.
func ordered(actual, expected any, cmp func(a, b float64) bool) bool {
	a, ok := state.ToFloat(actual)
	if !ok {
		return false
	}
	b, ok := state.ToFloat(expected)
	if !ok {
		return false
	}
	return cmp(a, b)
}

// contains tests list membership, substring containment or map key presence.
func contains(actual, expected any) bool {
	if list, ok := state.AsList(actual); ok {
		return member(list, expected)
	}
	switch v := actual.(type) {
	case string:
		sub, ok := expected.(string)
		return ok && strings.Contains(v, sub)
	case map[string]any:
		key, ok := expected.(string)
		if !ok {
			return false
		}
		_, found := v[key]
		return found
	}
	return false
}

func member(list []any, v any) bool {
	for _, item := range list {
		if state.Equal(item, v) {
			return true
		}
	}
	return false
}
