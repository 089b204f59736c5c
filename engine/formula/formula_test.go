package formula

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/statecore/engine/dice"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

type fixedSource int

func (f fixedSource) Intn(n int) int { return int(f) % n }

func testCharacter() *types.CharacterState {
	rs := &types.Ruleset{
		ID: "test",
		Stats: []types.StatDef{
			{ID: "STR", Type: types.ValueNumber, Default: 14},
			{ID: "INT", Type: types.ValueNumber, Default: 18},
			{ID: "race", Type: types.ValueText, Default: "elf"},
			{ID: "cursed", Type: types.ValueBoolean, Default: true},
		},
		Resources: []types.ResourceDef{
			{StatDef: types.StatDef{ID: "health", Default: 100}},
			{StatDef: types.StatDef{ID: "mana", Default: 50}},
		},
	}
	s := state.New(rs, "c1", "Hero", nil, time.Unix(0, 0))
	s.Resources.Current["health"] = 40
	s.Custom["spell"] = map[string]any{"manaCost": 100}
	return s
}

func TestEval(t *testing.T) {
	e := New(fixedSource(0), zerolog.Nop())
	s := testCharacter()

	tests := []struct {
		formula string
		want    float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"2 ^ 3 ^ 2", 512},
		{"-2 ^ 2", -4},
		{"10 % 4", 2},
		{"STR + INT", 32},
		{"1 - (INT - 10) * 0.05", 0.6},
		{"stats.STR * 2", 28},
		{"health / maxHealth", 0.4},
		{"mana + maxMana", 100},
		{"resources.current.health", 40},
		{"character.custom.spell.manaCost", 100},
		{"custom.spell.manaCost / 4", 25},
		{"cursed * 5", 5},
		{"max(STR, INT, 3)", 18},
		{"min(STR, INT)", 14},
		{"clamp(250, 0, 100)", 100},
		{"floor(7 / 2) + ceil(0.2) + round(2.5)", 7},
		{"abs(-3) + sqrt(16) + pow(2, 4)", 23},
		{"1.5e2", 150},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			res, err := e.Eval(tt.formula, s)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Value, 1e-9)
			assert.Empty(t, res.Rolls)
		})
	}
}

func TestEval_Dice(t *testing.T) {
	e := New(fixedSource(3), zerolog.Nop())
	s := testCharacter()

	res, err := e.Eval("2d6 + STR", s)
	require.NoError(t, err)
	assert.Equal(t, float64(8+14), res.Value)
	require.Len(t, res.Rolls, 1)
	assert.Equal(t, "2d6", res.Rolls[0].Notation)
	assert.Equal(t, []int{4, 4}, res.Rolls[0].Results)

	res, err = e.Eval("10 - 1d4 * 2", s)
	require.NoError(t, err)
	assert.Equal(t, float64(2), res.Value)

	res, err = e.Eval("d20", s)
	require.NoError(t, err)
	assert.Equal(t, float64(4), res.Value)
}

func TestEval_Errors(t *testing.T) {
	e := New(fixedSource(0), zerolog.Nop())
	s := testCharacter()

	_, err := e.Eval("1 +", s)
	assert.True(t, IsSyntaxError(err))

	_, err = e.Eval("WIS * 2", s)
	var unknown *UnknownVariableError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "WIS", unknown.Name)

	_, err = e.Eval("STR / 0", s)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = e.Eval("race + 1", s)
	assert.ErrorIs(t, err, ErrNotANumber)

	_, err = e.Eval("sqrt(-1)", s)
	assert.ErrorIs(t, err, ErrNotANumber)

	_, err = e.Eval("explode(1)", s)
	assert.Error(t, err)

	_, err = e.Eval("pow(2)", s)
	assert.Error(t, err)

	_, err = e.Eval("0d6", s)
	assert.Error(t, err)
}

func TestEvaluate_FailureIsZero(t *testing.T) {
	e := New(fixedSource(0), zerolog.Nop())
	s := testCharacter()

	assert.Equal(t, float64(0), e.Evaluate("1 / 0", s))
	assert.Equal(t, float64(0), e.Evaluate("((", s))
	assert.Equal(t, float64(0), e.Evaluate("unknown + 1", s))
	assert.Equal(t, float64(6), e.Evaluate("2 * 3", s))
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate("STR * 2 + 1d6").Valid)
	assert.True(t, Validate("undefinedStat + 1").Valid, "validation does not resolve variables")

	v := Validate("2 * (3 + ")
	assert.False(t, v.Valid)
	assert.NotEmpty(t, v.Error)

	assert.False(t, Validate("").Valid)
	assert.False(t, Validate("2 $ 3").Valid)

	for _, f := range []string{"2000000000d6", "STR + 1001d6", "2d1000001", "d2000000", "d99999999999999999999"} {
		v := Validate(f)
		assert.False(t, v.Valid, f)
		assert.Contains(t, v.Error, "invalid dice count or sides", f)
	}
	assert.True(t, Validate("1000d1000000").Valid)
}

func TestEvaluate_OversizedDiceIsZero(t *testing.T) {
	e := New(fixedSource(0), zerolog.Nop())
	assert.Equal(t, 0.0, e.Evaluate("2000000000d6", testCharacter()))

	_, _, err := Range("2000000000d6")
	assert.ErrorIs(t, err, dice.ErrInvalidDiceSpec)
}

func TestAverageAndRange(t *testing.T) {
	avg, err := Average("2d6")
	require.NoError(t, err)
	assert.Equal(t, float64(7), avg)

	lo, hi, err := Range("2d6")
	require.NoError(t, err)
	assert.Equal(t, float64(2), lo)
	assert.Equal(t, float64(12), hi)

	_, err = Average("banana")
	assert.Error(t, err)
}

func TestLooksLikeFormula(t *testing.T) {
	s := testCharacter()
	tests := []struct {
		value any
		want  bool
	}{
		{"STR * 2", true},
		{"STR", true},
		{"health + 5", true},
		{"2d6", true},
		{"1 + 1", true},
		{"STR + bonus", true},
		{"cursed * 5", true},
		{"cursed", true},
		{"max(STR, 3)", true},
		{"explode(1)", true},
		{"-5", true},
		{"fire-resistant", false},
		{"hard-rest-day", false},
		{"poisoned", false},
		{"race", false},
		{"5", false},
		{"", false},
		{"2 * (", false},
		{42, false},
		{map[string]any{"a": "STR"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LooksLikeFormula(tt.value, s), "%v", tt.value)
	}
}

func TestHasFormulaShape(t *testing.T) {
	for _, f := range []string{"STR + 1", "STR-1", "-2", "(x)", "a*b", "2^3"} {
		assert.True(t, HasFormulaShape(f), f)
	}
	for _, f := range []string{"fire-resistant", "half_elf", "poisoned", "2d6", ""} {
		assert.False(t, HasFormulaShape(f), f)
	}
}
