package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/statecore/types"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRuleset() *types.Ruleset {
	return &types.Ruleset{
		ID: "rs",
		Stats: []types.StatDef{
			{ID: "STR", Type: types.ValueNumber, Default: 10},
			{ID: "title", Type: types.ValueText, Default: "squire"},
			{ID: "tags", Default: []any{"a", "b"}},
		},
		Resources: []types.ResourceDef{
			{StatDef: types.StatDef{ID: "health", Default: 80}},
			{StatDef: types.StatDef{ID: "focus", Default: "lots"}},
		},
	}
}

func testCharacter() *types.CharacterState {
	s := New(testRuleset(), "c1", "Aria", map[string]any{"title": "knight"}, t0)
	s.Custom["quest"] = map[string]any{"stage": 2}
	s.Inventory.Capacity = 10
	s.Inventory.Items = []types.ItemInstance{{ID: "i1", ItemID: "potion", Name: "Potion"}}
	s.Equipment["head"] = &types.ItemInstance{ID: "i2", ItemID: "helm"}
	s.Timers["buff"] = types.Timer{RuleID: "buff", Duration: 30, Remaining: 12}
	s.Environment.Exposures["cold"] = types.Exposure{TotalSeconds: 45}
	s.Statuses = []types.Status{{ID: "s1", Name: "poison", AppliedAt: t0}}
	return s
}

func TestNew(t *testing.T) {
	rs := testRuleset()
	s := New(rs, "c1", "Aria", map[string]any{"title": "knight", "extra": 3}, t0)

	assert.Equal(t, "rs", s.RulesetID)
	assert.Equal(t, 10, s.Stats["STR"])
	assert.Equal(t, "knight", s.Stats["title"])
	assert.Equal(t, 3, s.Stats["extra"])
	assert.Equal(t, 80.0, s.Resources.Current["health"])
	assert.Equal(t, 80.0, s.Resources.Max["health"])
	assert.Equal(t, float64(DefaultResourceValue), s.Resources.Current["focus"])
	assert.Equal(t, t0, s.CreatedAt)
	assert.NotNil(t, s.Timers)
	assert.NotNil(t, s.Environment.Exposures)

	// Defaults are copied, not shared with the ruleset.
	tags := s.Stats["tags"].([]any)
	tags[0] = "z"
	assert.Equal(t, []any{"a", "b"}, rs.Stats[2].Default)
}

func TestGet(t *testing.T) {
	s := testCharacter()

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"id", "c1", true},
		{"name", "Aria", true},
		{"stats.STR", 10, true},
		{"stats.missing", nil, false},
		{"STR", 10, true},
		{"resources.current.health", 80.0, true},
		{"resources.max.health", 80.0, true},
		{"resources.health", nil, false},
		{"quest.stage", 2, true},
		{"custom.quest.stage", 2, true},
		{"custom.quest.nope", nil, false},
		{"statuses", []any{"poison"}, true},
		{"inventory.count", 1.0, true},
		{"inventory.capacity", 10.0, true},
		{"inventory.items", []any{"potion"}, true},
		{"equipment.head", "helm", true},
		{"timers.buff.remaining", 12.0, true},
		{"timers.buff.paused", false, true},
		{"environment.exposures.cold.totalSeconds", 45.0, true},
		{"", nil, false},
		{"nowhere.at.all", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Get(s, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGet_CustomShadowsStat(t *testing.T) {
	s := testCharacter()
	s.Custom["STR"] = 99

	got, ok := Get(s, "STR")
	require.True(t, ok)
	assert.Equal(t, 99, got)
}

func TestSet_CopyOnWrite(t *testing.T) {
	s := testCharacter()

	next, err := Set(s, "stats.STR", 14.0)
	require.NoError(t, err)
	assert.Equal(t, 14.0, next.Stats["STR"])
	assert.Equal(t, 10, s.Stats["STR"], "input untouched")
	assert.Equal(t, s.Resources.Current, next.Resources.Current)

	next, err = Set(s, "resources.current.health", 5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, next.Resources.Current["health"])
	assert.Equal(t, 80.0, s.Resources.Current["health"])

	next, err = Set(s, "custom.quest.stage", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, next.Custom["quest"].(map[string]any)["stage"])
	assert.Equal(t, 2, s.Custom["quest"].(map[string]any)["stage"])

	next, err = Set(s, "flags.door.open", true)
	require.NoError(t, err)
	v, ok := Get(next, "flags.door.open")
	require.True(t, ok)
	assert.Equal(t, true, v)
	_, ok = Get(s, "flags.door.open")
	assert.False(t, ok)

	next, err = Set(s, "progression.scrap", 4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, next.Progression["scrap"])
	assert.Empty(t, s.Progression)
}

func TestSet_Errors(t *testing.T) {
	s := testCharacter()

	_, err := Set(s, "id", "x")
	assert.ErrorIs(t, err, ErrReadOnlyPath)
	_, err = Set(s, "statuses", []any{})
	assert.ErrorIs(t, err, ErrReadOnlyPath)
	_, err = Set(s, "", 1)
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = Set(s, "resources.current.health", "lots")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = Set(s, "resources.health", 1)
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = Set(s, "name", 3)
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = Set(nil, "stats.STR", 1)
	assert.ErrorIs(t, err, ErrNilState)
}

func TestClone_IsDeep(t *testing.T) {
	s := testCharacter()
	d := 10.0
	s.Inventory.Items[0].Durability = &d
	exp := t0.Add(time.Minute)
	s.Statuses[0].ExpiresAt = &exp

	c := Clone(s)
	c.Stats["STR"] = 1
	c.Custom["quest"].(map[string]any)["stage"] = 9
	c.Resources.Current["health"] = 1
	*c.Inventory.Items[0].Durability = 1
	c.Equipment["head"].ItemID = "cap"
	*c.Statuses[0].ExpiresAt = t0
	c.Timers["buff"] = types.Timer{}

	assert.Equal(t, 10, s.Stats["STR"])
	assert.Equal(t, 2, s.Custom["quest"].(map[string]any)["stage"])
	assert.Equal(t, 80.0, s.Resources.Current["health"])
	assert.Equal(t, 10.0, *s.Inventory.Items[0].Durability)
	assert.Equal(t, "helm", s.Equipment["head"].ItemID)
	assert.Equal(t, exp, *s.Statuses[0].ExpiresAt)
	assert.Equal(t, 12.0, s.Timers["buff"].Remaining)

	assert.Nil(t, Clone(nil))
}

func TestStatusActivity(t *testing.T) {
	exp := t0.Add(time.Minute)
	s := testCharacter()
	s.Statuses = []types.Status{
		{Name: "poison", AppliedAt: t0},
		{Name: "haste", AppliedAt: t0, ExpiresAt: &exp},
		{Name: "future", AppliedAt: t0.Add(time.Hour)},
	}

	assert.Len(t, ActiveStatuses(s, t0), 2)
	assert.True(t, HasActiveStatus(s, "haste", t0.Add(59*time.Second)))
	assert.False(t, HasActiveStatus(s, "haste", exp), "expired at ExpiresAt")
	assert.False(t, HasActiveStatus(s, "future", t0))
	assert.False(t, HasActiveStatus(s, "missing", t0))
}

func TestEffectiveStat(t *testing.T) {
	s := testCharacter()
	s.Modifiers = []types.Modifier{
		{ID: "m1", Stat: "STR", Operation: types.ModAdd, Value: 2},
		{ID: "m2", Stat: "STR", Operation: types.ModMultiply, Value: 3, Priority: 5},
		{ID: "m3", Stat: "STR", Operation: types.ModAdd, Value: 1},
		{ID: "m4", Stat: "DEX", Operation: types.ModSet, Value: 8},
	}

	assert.Equal(t, 33.0, EffectiveStat(s, "STR"))
	assert.Equal(t, 8.0, EffectiveStat(s, "DEX"))
	assert.Equal(t, 0.0, EffectiveStat(s, "title"))
}

func TestValues(t *testing.T) {
	f, ok := ToFloat(json.Number("2.5"))
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)
	_, ok = ToFloat("2.5")
	assert.False(t, ok)

	assert.True(t, Equal(1, 1.0))
	assert.True(t, Equal("a", "a"))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal("1", 1))
	assert.False(t, Equal([]any{1}, []any{1}))
	assert.False(t, Equal(map[string]any{}, map[string]any{}))

	l, ok := AsList([]string{"x"})
	assert.True(t, ok)
	assert.Equal(t, []any{"x"}, l)
	_, ok = AsList("x")
	assert.False(t, ok)
}
