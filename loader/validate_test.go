package loader

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/statecore/types"
)

func ptr(f float64) *float64 { return &f }

// validRuleset returns a minimal ruleset that passes validation.
func validRuleset() *types.Ruleset {
	return &types.Ruleset{
		ID: "test",
		Stats: []types.StatDef{
			{ID: "STR", Name: "STR", Type: types.ValueNumber, Default: 10, Min: ptr(1), Max: ptr(30)},
		},
		Resources: []types.ResourceDef{{
			StatDef: types.StatDef{ID: "health", Type: types.ValueNumber, Default: 100},
			Regen:   &types.Regeneration{Enabled: true, Rate: 1, Interval: 60},
		}},
		Rules: []types.Rule{{
			ID:      "train",
			Enabled: true,
			Trigger: &types.Trigger{Type: types.TriggerOnAction, Action: "train"},
			Conditions: &types.Condition{Operator: types.LogicAll, Conditions: []types.Condition{
				{Field: "stats.STR", Operator: ">=", Value: 5},
			}},
			Effects:  []types.Effect{{Target: "stats.STR", Operation: types.OpAdd, Value: "1 + 1"}},
			Duration: &types.RuleDuration{Type: types.DurationCalculated, Formula: "STR * 2"},
		}},
	}
}

// errorsOf runs Validate and returns the error strings.
func errorsOf(t *testing.T, rs *types.Ruleset) []string {
	t.Helper()
	_, err := Validate(rs)
	if err == nil {
		return nil
	}
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	return ve.Errors
}

func hasError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestValidate_Valid(t *testing.T) {
	warnings, err := Validate(validRuleset())
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(rs *types.Ruleset)
		want   string
	}{
		{"missing id", func(rs *types.Ruleset) { rs.ID = "" }, "ruleset id is required"},
		{"duplicate stat", func(rs *types.Ruleset) { rs.Stats = append(rs.Stats, rs.Stats[0]) }, `duplicate stat id "STR"`},
		{"min above max", func(rs *types.Ruleset) { rs.Stats[0].Min = ptr(50) }, "exceeds max"},
		{"unknown stat type", func(rs *types.Ruleset) { rs.Stats[0].Type = "vector" }, "unknown type"},
		{"duplicate resource", func(rs *types.Ruleset) { rs.Resources = append(rs.Resources, rs.Resources[0]) }, `duplicate resource id "health"`},
		{"regen interval", func(rs *types.Ruleset) { rs.Resources[0].Regen.Interval = 0 }, "interval must be positive"},
		{"duplicate rule", func(rs *types.Ruleset) { rs.Rules = append(rs.Rules, rs.Rules[0]) }, `duplicate rule id "train"`},
		{"unknown trigger", func(rs *types.Ruleset) { rs.Rules[0].Trigger.Type = "on_sneeze" }, "unknown trigger type"},
		{"status trigger without status", func(rs *types.Ruleset) {
			rs.Rules[0].Trigger = &types.Trigger{Type: types.TriggerStatusActive}
		}, "needs a status"},
		{"unknown operation", func(rs *types.Ruleset) { rs.Rules[0].Effects[0].Operation = "explode" }, "unknown operation"},
		{"missing target", func(rs *types.Ruleset) { rs.Rules[0].Effects[0].Target = "" }, "has no target"},
		{"dangling chain", func(rs *types.Ruleset) { rs.Rules[0].Effects[0].TriggersRule = "ghost" }, `undefined rule "ghost"`},
		{"bad effect formula", func(rs *types.Ruleset) { rs.Rules[0].Effects[0].Value = "STR * (2" }, "effect 0"},
		{"bad rule formula", func(rs *types.Ruleset) { rs.Rules[0].Formula = "1 +" }, "formula:"},
		{"bad duration formula", func(rs *types.Ruleset) { rs.Rules[0].Duration.Formula = "10 +" }, "duration formula"},
		{"timed without seconds", func(rs *types.Ruleset) {
			rs.Rules[0].Duration = &types.RuleDuration{Type: types.DurationTimed}
		}, "timed duration must be positive"},
		{"until without condition", func(rs *types.Ruleset) {
			rs.Rules[0].Duration = &types.RuleDuration{Type: types.DurationUntilCondition}
		}, "has no condition"},
		{"unknown duration", func(rs *types.Ruleset) { rs.Rules[0].Duration.Type = "forever" }, "unknown duration type"},
		{"unknown comparison", func(rs *types.Ruleset) {
			rs.Rules[0].Conditions.Conditions[0].Operator = "~="
		}, "unknown operator"},
		{"condition without field", func(rs *types.Ruleset) {
			rs.Rules[0].Conditions.Conditions[0].Field = ""
		}, "has no field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := validRuleset()
			tt.mutate(rs)
			errs := errorsOf(t, rs)
			assert.True(t, hasError(errs, tt.want), "want %q in %v", tt.want, errs)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	rs, err := DecodeYAML([]byte(`
rules:
  - id: a
    trigger: {type: nope}
    effects:
      - {target: stats.STR, operation: explode, value: 1}
`))
	require.NoError(t, err)
	errs := errorsOf(t, rs)
	assert.GreaterOrEqual(t, len(errs), 3)
}

func TestValidate_DependencyWarnings(t *testing.T) {
	rs := validRuleset()
	rs.Rules[0].Metadata.Dependencies = &types.RuleDependencies{
		AppliesAfter:   []string{"train"},
		RequiresActive: []string{"ghost"},
	}
	warnings, err := Validate(rs)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "not enforced")
	assert.Contains(t, warnings[1], `"ghost"`)
}

func TestValidationError_Message(t *testing.T) {
	ve := &ValidationError{Errors: []string{"a", "b"}}
	assert.Equal(t, "validation failed with 2 error(s):\n  a\n  b", ve.Error())
}
