package rules

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/statecore/engine/dice"
	"github.com/nathoo/statecore/engine/formula"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

func testRuleset(rules ...types.Rule) *types.Ruleset {
	return &types.Ruleset{
		ID: "test",
		Stats: []types.StatDef{
			{ID: "STR", Type: types.ValueNumber, Default: 10},
			{ID: "INT", Type: types.ValueNumber, Default: 18},
		},
		Resources: []types.ResourceDef{
			{StatDef: types.StatDef{ID: "health", Default: 100}},
		},
		Rules: rules,
	}
}

func testOrchestrator(rs *types.Ruleset) (*Orchestrator, *types.CharacterState) {
	o := NewOrchestrator(rs, formula.New(dice.NewRNG(3), zerolog.Nop()), zerolog.Nop())
	o.Now = func() time.Time { return time.Unix(1000, 0) }
	s := state.New(rs, "c1", "Hero", nil, time.Unix(0, 0))
	return o, s
}

func setSTR(v any) types.Effect {
	return types.Effect{Target: "stats.STR", Operation: types.OpSet, Value: v}
}

func TestEvaluateRule_Disabled(t *testing.T) {
	rule := types.Rule{ID: "r", Enabled: false, Effects: []types.Effect{setSTR(99)}}
	o, s := testOrchestrator(testRuleset(rule))

	res, err := o.EvaluateRule(rule, s)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.False(t, res.ConditionsMet)
	assert.Same(t, s, res.State)
}

func TestEvaluateRule_ConditionsUnmet(t *testing.T) {
	rule := types.Rule{
		ID: "r", Enabled: true,
		Conditions: &types.Condition{Field: "stats.STR", Operator: ">", Value: 50},
		Effects:    []types.Effect{setSTR(99)},
	}
	o, s := testOrchestrator(testRuleset(rule))

	res, err := o.EvaluateRule(rule, s)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.False(t, res.ConditionsMet)
	assert.Equal(t, 10, res.State.Stats["STR"])
}

func TestEvaluateRule_FormulaStored(t *testing.T) {
	rule := types.Rule{ID: "dmg", Enabled: true, Formula: "STR * 2 + 1"}
	o, s := testOrchestrator(testRuleset(rule))

	res, err := o.EvaluateRule(rule, s)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.NotNil(t, res.FormulaValue)
	assert.Equal(t, float64(21), *res.FormulaValue)
	assert.Equal(t, float64(21), res.State.Custom[FormulaKey("dmg")])
	assert.NotContains(t, s.Custom, FormulaKey("dmg"))
}

func TestEvaluateRule_ManaCostScenario(t *testing.T) {
	rule := types.Rule{
		ID: "int_discount", Name: "Intellect discount", Enabled: true,
		Conditions: &types.Condition{Field: "stats.INT", Operator: ">", Value: 10},
		Effects: []types.Effect{{
			Target:    "spell.manaCost",
			Operation: types.OpMultiply,
			Value:     "1 - (INT - 10) * 0.05",
		}},
	}
	o, s := testOrchestrator(testRuleset(rule))
	s.Custom["spell"] = map[string]any{"manaCost": 100}

	res, err := o.EvaluateRule(rule, s)
	require.NoError(t, err)
	require.True(t, res.Applied)
	cost, _ := state.Get(res.State, "spell.manaCost")
	assert.InDelta(t, 60, cost, 1e-9)
}

func TestEvaluateRule_LenientRecordsError(t *testing.T) {
	rule := types.Rule{ID: "bad", Enabled: true, Effects: []types.Effect{
		setSTR(50),
		{Target: "id", Operation: types.OpSet, Value: "other"},
	}}
	o, s := testOrchestrator(testRuleset(rule))

	res, err := o.EvaluateRule(rule, s)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.True(t, res.ConditionsMet)
	assert.Contains(t, res.Error, "read-only")
	assert.Same(t, s, res.State)
}

func TestEvaluateRule_StrictPropagates(t *testing.T) {
	rule := types.Rule{ID: "bad", Enabled: true, Effects: []types.Effect{
		{Target: "id", Operation: types.OpSet, Value: "other"},
	}}
	o, s := testOrchestrator(testRuleset(rule))
	o.Strict = true

	_, err := o.EvaluateRule(rule, s)
	var rerr *RuleError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "bad", rerr.RuleID)
	assert.ErrorIs(t, err, state.ErrReadOnlyPath)
}

func TestExecuteRules_PriorityOrder(t *testing.T) {
	r1 := types.Rule{ID: "r1", Enabled: true, Priority: 50, Effects: []types.Effect{setSTR("STR * 2")}}
	r2 := types.Rule{ID: "r2", Enabled: true, Priority: 200, Effects: []types.Effect{setSTR("STR + 5")}}
	o, s := testOrchestrator(testRuleset(r1, r2))

	x, err := o.ExecuteRules([]string{"r1", "r2"}, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r1"}, x.Applied())
	// (10 + 5) * 2, not 10 * 2 + 5.
	assert.Equal(t, float64(30), x.State.Stats["STR"])
}

func TestExecuteRules_StableForEqualPriority(t *testing.T) {
	a := types.Rule{ID: "a", Enabled: true, Priority: 10, Effects: []types.Effect{setSTR(1)}}
	b := types.Rule{ID: "b", Enabled: true, Priority: 10, Effects: []types.Effect{setSTR(2)}}
	o, s := testOrchestrator(testRuleset(a, b))

	x, err := o.ExecuteRules([]string{"b", "a"}, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, x.Applied())
	assert.Equal(t, 1, x.State.Stats["STR"])
}

func TestExecuteRules_UnknownIDsDropped(t *testing.T) {
	r := types.Rule{ID: "r", Enabled: true, Effects: []types.Effect{setSTR(12)}}
	o, s := testOrchestrator(testRuleset(r))

	x, err := o.ExecuteRules([]string{"ghost", "r"}, s)
	require.NoError(t, err)
	require.Len(t, x.Results, 1)
	assert.Equal(t, "r", x.Results[0].RuleID)
}

func TestExecuteRules_ChainBound(t *testing.T) {
	ping := types.Rule{ID: "ping", Enabled: true, Effects: []types.Effect{
		{Target: "custom.hits", Operation: types.OpAdd, Value: 1, TriggersRule: "pong"},
	}}
	pong := types.Rule{ID: "pong", Enabled: true, Effects: []types.Effect{
		{Target: "custom.hits", Operation: types.OpAdd, Value: 1, TriggersRule: "ping"},
	}}
	o, s := testOrchestrator(testRuleset(ping, pong))
	s.Custom["hits"] = 0

	x, err := o.ExecuteRules([]string{"ping"}, s)
	require.NoError(t, err)
	require.Len(t, x.Results, 2)
	assert.Equal(t, "ping", x.Results[0].RuleID)
	assert.False(t, x.Results[0].Chained)
	assert.Equal(t, "pong", x.Results[1].RuleID)
	assert.True(t, x.Results[1].Chained)
	assert.Equal(t, []string{"ping"}, x.Results[1].TriggeredRules)
	assert.Equal(t, float64(2), x.State.Custom["hits"])
}

func TestExecuteRules_LenientContinuesBatch(t *testing.T) {
	bad := types.Rule{ID: "bad", Enabled: true, Priority: 10, Effects: []types.Effect{
		{Target: "rulesetId", Operation: types.OpSet, Value: "x"},
	}}
	good := types.Rule{ID: "good", Enabled: true, Effects: []types.Effect{setSTR(11)}}
	o, s := testOrchestrator(testRuleset(bad, good))

	x, err := o.ExecuteRules([]string{"bad", "good"}, s)
	require.NoError(t, err)
	require.Len(t, x.Results, 2)
	assert.NotEmpty(t, x.Results[0].Error)
	assert.True(t, x.Results[1].Applied)
	assert.Equal(t, 11, x.State.Stats["STR"])
}

func TestExecuteRules_StrictAbortsBatch(t *testing.T) {
	bad := types.Rule{ID: "bad", Enabled: true, Priority: 10, Effects: []types.Effect{
		{Target: "rulesetId", Operation: types.OpSet, Value: "x"},
	}}
	good := types.Rule{ID: "good", Enabled: true, Effects: []types.Effect{setSTR(11)}}
	o, s := testOrchestrator(testRuleset(bad, good))
	o.Strict = true

	x, err := o.ExecuteRules([]string{"bad", "good"}, s)
	require.Error(t, err)
	assert.Empty(t, x.Results)
	assert.Same(t, s, x.State)
}

func TestFindRulesByTrigger(t *testing.T) {
	passive := types.Rule{ID: "p", Enabled: true, Trigger: &types.Trigger{Type: types.TriggerPassive}}
	off := types.Rule{ID: "off", Enabled: false, Trigger: &types.Trigger{Type: types.TriggerPassive}}
	manual := types.Rule{ID: "m", Enabled: true, Trigger: &types.Trigger{Type: types.TriggerManual}}
	none := types.Rule{ID: "n", Enabled: true}
	o, _ := testOrchestrator(testRuleset(passive, off, manual, none))

	found := o.FindRulesByTrigger(types.TriggerPassive)
	require.Len(t, found, 1)
	assert.Equal(t, "p", found[0].ID)
	assert.Empty(t, o.FindRulesByTrigger(types.TriggerOnCastSpell))
}

func TestExecuteTrigger(t *testing.T) {
	fireball := types.Rule{
		ID: "fireball", Enabled: true,
		Trigger: &types.Trigger{Type: types.TriggerOnCastSpell, Spell: "fireball"},
		Effects: []types.Effect{{Target: "custom.casts", Operation: types.OpAdd, Value: 1}},
	}
	anySpell := types.Rule{
		ID: "focus", Enabled: true,
		Trigger: &types.Trigger{Type: types.TriggerOnCastSpell},
		Effects: []types.Effect{{Target: "custom.focus", Operation: types.OpSet, Value: true}},
	}
	o, s := testOrchestrator(testRuleset(fireball, anySpell))

	x, err := o.ExecuteTrigger(types.TriggerOnCastSpell, s, map[string]any{"spell": "frostbolt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fireball", "focus"}, x.Applied(), "trigger data does not select rules")
	assert.Equal(t, 1, x.State.Custom["casts"])

	x, err = o.ExecuteTrigger(types.TriggerOnCastSpell, s, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fireball", "focus"}, x.Applied())
}

func TestExecuteMatching(t *testing.T) {
	fireball := types.Rule{
		ID: "fireball", Enabled: true,
		Trigger: &types.Trigger{Type: types.TriggerOnCastSpell, Spell: "fireball"},
		Effects: []types.Effect{{Target: "custom.casts", Operation: types.OpAdd, Value: 1}},
	}
	anySpell := types.Rule{
		ID: "focus", Enabled: true,
		Trigger: &types.Trigger{Type: types.TriggerOnCastSpell},
		Effects: []types.Effect{{Target: "custom.focus", Operation: types.OpSet, Value: true}},
	}
	o, s := testOrchestrator(testRuleset(fireball, anySpell))

	x, err := o.ExecuteMatching(types.TriggerOnCastSpell, s, map[string]any{"spell": "frostbolt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"focus"}, x.Applied())

	x, err = o.ExecuteMatching(types.TriggerOnCastSpell, s, map[string]any{"spell": "fireball"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fireball", "focus"}, x.Applied())

	x, err = o.ExecuteMatching(types.TriggerOnCastSpell, s, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"fireball", "focus"}, x.Applied())

	assert.Len(t, o.FindRulesByTrigger(types.TriggerOnCastSpell), 2)
	assert.Len(t, o.FindRulesMatching(types.TriggerOnCastSpell, map[string]any{"spell": "frostbolt"}), 1)
}

func TestValidateRule(t *testing.T) {
	ok := ValidateRule(types.Rule{
		ID: "ok", Formula: "STR * 2",
		Effects: []types.Effect{
			{Target: "stats.STR", Operation: types.OpSet, Value: "STR + 1d6"},
			{Target: "custom.kind", Operation: types.OpSet, Value: "fire-resistant"},
		},
	})
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.Errors)

	bad := ValidateRule(types.Rule{
		ID: "bad", Formula: "STR * (2",
		Effects: []types.Effect{{Target: "stats.STR", Operation: types.OpSet, Value: "3 + * 4"}},
	})
	assert.False(t, bad.Valid)
	assert.Len(t, bad.Errors, 2)
}
