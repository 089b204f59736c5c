package loader

import (
	"fmt"
	"strings"

	"github.com/nathoo/statecore/engine/formula"
	"github.com/nathoo/statecore/engine/rules"
	"github.com/nathoo/statecore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

var validTriggers = map[types.TriggerType]bool{
	types.TriggerOnAction:            true,
	types.TriggerOnConsumeItem:       true,
	types.TriggerOnEquipItem:         true,
	types.TriggerOnDamageCalculation: true,
	types.TriggerOnCastSpell:         true,
	types.TriggerTimeElapsed:         true,
	types.TriggerStatusActive:        true,
	types.TriggerPassive:             true,
	types.TriggerManual:              true,
}

var validOps = map[types.EffectOp]bool{
	types.OpSet:      true,
	types.OpAdd:      true,
	types.OpSubtract: true,
	types.OpMultiply: true,
	types.OpDivide:   true,
	types.OpAppend:   true,
	types.OpRemove:   true,
}

var validDurations = map[types.DurationType]bool{
	types.DurationTimed:          true,
	types.DurationCalculated:     true,
	types.DurationPermanent:      true,
	types.DurationUntilCondition: true,
}

var validCompare = map[string]bool{
	"equals": true, "==": true, "=": true, "notEquals": true, "!=": true,
	"greaterThan": true, ">": true, "lessThan": true, "<": true,
	"greaterThanOrEqual": true, ">=": true, "lessThanOrEqual": true, "<=": true,
	"contains": true, "notContains": true, "in": true, "notIn": true,
}

// Validate checks a ruleset for consistency. It returns the warnings found
// and, when there are errors, a *ValidationError carrying both.
func Validate(rs *types.Ruleset) ([]string, error) {
	ve := &ValidationError{}
	errorf := func(format string, args ...any) {
		ve.Errors = append(ve.Errors, fmt.Sprintf(format, args...))
	}
	warnf := func(format string, args ...any) {
		ve.Warnings = append(ve.Warnings, fmt.Sprintf(format, args...))
	}

	if rs.ID == "" {
		errorf("ruleset id is required")
	}

	statIDs := map[string]bool{}
	for _, s := range rs.Stats {
		if s.ID == "" {
			errorf("stat with empty id")
			continue
		}
		if statIDs[s.ID] {
			errorf("duplicate stat id %q", s.ID)
		}
		statIDs[s.ID] = true
		validateBounds("stat", s, errorf)
	}

	resourceIDs := map[string]bool{}
	for _, r := range rs.Resources {
		if r.ID == "" {
			errorf("resource with empty id")
			continue
		}
		if resourceIDs[r.ID] {
			errorf("duplicate resource id %q", r.ID)
		}
		resourceIDs[r.ID] = true
		validateBounds("resource", r.StatDef, errorf)
		if r.Regen != nil && r.Regen.Enabled && r.Regen.Interval <= 0 {
			errorf("resource %q regeneration interval must be positive", r.ID)
		}
	}

	ruleIDs := map[string]bool{}
	for _, rule := range rs.Rules {
		if rule.ID == "" {
			errorf("rule with empty id")
			continue
		}
		if ruleIDs[rule.ID] {
			errorf("duplicate rule id %q", rule.ID)
		}
		ruleIDs[rule.ID] = true
	}

	for _, rule := range rs.Rules {
		validateRule(rule, ruleIDs, errorf, warnf)
	}

	if len(ve.Errors) > 0 {
		return ve.Warnings, ve
	}
	return ve.Warnings, nil
}

func validateBounds(kind string, s types.StatDef, errorf func(string, ...any)) {
	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		errorf("%s %q min %g exceeds max %g", kind, s.ID, *s.Min, *s.Max)
	}
	switch s.Type {
	case types.ValueNumber, types.ValueBoolean, types.ValueText:
	default:
		errorf("%s %q has unknown type %q", kind, s.ID, s.Type)
	}
}

func validateRule(rule types.Rule, ruleIDs map[string]bool, errorf, warnf func(string, ...any)) {
	if rule.Trigger != nil {
		if !validTriggers[rule.Trigger.Type] {
			errorf("rule %q has unknown trigger type %q", rule.ID, rule.Trigger.Type)
		}
		if rule.Trigger.Type == types.TriggerStatusActive && rule.Trigger.Status == "" {
			errorf("rule %q status_active trigger needs a status", rule.ID)
		}
		if rule.Trigger.Interval < 0 {
			errorf("rule %q trigger interval is negative", rule.ID)
		}
	}

	if rule.Conditions != nil {
		validateCondition(rule.ID, *rule.Conditions, errorf)
	}

	for i, eff := range rule.Effects {
		if eff.Target == "" {
			errorf("rule %q effect %d has no target", rule.ID, i)
		}
		if !validOps[eff.Operation] {
			errorf("rule %q effect %d has unknown operation %q", rule.ID, i, eff.Operation)
		}
		if eff.TriggersRule != "" && !ruleIDs[eff.TriggersRule] {
			errorf("rule %q effect %d triggers undefined rule %q", rule.ID, i, eff.TriggersRule)
		}
	}

	if v := rules.ValidateRule(rule); !v.Valid {
		for _, e := range v.Errors {
			errorf("rule %q %s", rule.ID, e)
		}
	}

	if d := rule.Duration; d != nil {
		switch {
		case !validDurations[d.Type]:
			errorf("rule %q has unknown duration type %q", rule.ID, d.Type)
		case d.Type == types.DurationTimed && d.Seconds <= 0:
			errorf("rule %q timed duration must be positive", rule.ID)
		case d.Type == types.DurationCalculated:
			if v := formula.Validate(d.Formula); !v.Valid {
				errorf("rule %q duration formula: %s", rule.ID, v.Error)
			}
		case d.Type == types.DurationUntilCondition:
			if d.Until == nil {
				errorf("rule %q until_condition duration has no condition", rule.ID)
			} else {
				validateCondition(rule.ID, *d.Until, errorf)
			}
		}
	}

	if deps := rule.Metadata.Dependencies; deps != nil {
		warnf("rule %q declares dependencies, which are not enforced", rule.ID)
		for _, list := range [][]string{deps.AppliesAfter, deps.RequiresActive, deps.ConflictsWith} {
			for _, id := range list {
				if !ruleIDs[id] {
					warnf("rule %q depends on undefined rule %q", rule.ID, id)
				}
			}
		}
	}
}

func validateCondition(ruleID string, c types.Condition, errorf func(string, ...any)) {
	if c.IsGroup() {
		switch c.Operator {
		case types.LogicAll, types.LogicAny, types.LogicNone:
		default:
			errorf("rule %q condition group has unknown operator %q", ruleID, c.Operator)
		}
		for _, child := range c.Conditions {
			validateCondition(ruleID, child, errorf)
		}
		return
	}
	if c.Field == "" {
		errorf("rule %q condition has no field", ruleID)
	}
	if !validCompare[c.Operator] {
		errorf("rule %q condition on %q has unknown operator %q", ruleID, c.Field, c.Operator)
	}
}
