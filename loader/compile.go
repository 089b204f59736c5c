package loader

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/statecore/types"
)

// rawDef holds a curried definition table before compilation.
type rawDef struct {
	id    string
	table *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getOptNumber returns a numeric field, or nil if missing.
func getOptNumber(tbl *lua.LTable, key string) *float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		f := float64(n)
		return &f
	}
	return nil
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// getStrings returns the string elements of an array field.
func getStrings(tbl *lua.LTable, key string) []string {
	arr := getTable(tbl, key)
	if arr == nil {
		return nil
	}
	var out []string
	for i := 1; i <= arr.MaxN(); i++ {
		if s, ok := arr.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// toGoValue converts a Lua value to a Go value recursively. Integral
// numbers become int.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Sequential integer keys starting at 1 make an array.
		if maxN := val.MaxN(); maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// tableToAnyMap converts a Lua table to a map[string]any.
func tableToAnyMap(tbl *lua.LTable) map[string]any {
	if tbl == nil {
		return nil
	}
	m := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			m[string(ks)] = toGoValue(v)
		}
	})
	return m
}

// compile converts all collected Lua data into a Ruleset.
func compile(coll *collector) (*types.Ruleset, error) {
	if coll.ruleset == nil {
		return nil, fmt.Errorf("no Ruleset{} definition found")
	}
	rs := &types.Ruleset{
		ID:      getString(coll.ruleset, "id"),
		Name:    getString(coll.ruleset, "name"),
		Version: getString(coll.ruleset, "version"),
	}

	for _, raw := range coll.stats {
		rs.Stats = append(rs.Stats, compileStat(raw))
	}
	for _, raw := range coll.resources {
		rs.Resources = append(rs.Resources, compileResource(raw))
	}
	for _, raw := range coll.rules {
		rule, err := compileRule(raw)
		if err != nil {
			return nil, fmt.Errorf("compiling rule %s: %w", raw.id, err)
		}
		rs.Rules = append(rs.Rules, rule)
	}
	return rs, nil
}

func compileStat(raw rawDef) types.StatDef {
	tbl := raw.table
	def := types.StatDef{
		ID:      raw.id,
		Name:    getString(tbl, "name"),
		Type:    types.ValueType(getString(tbl, "type")),
		Default: toGoValue(tbl.RawGetString("default")),
		Min:     getOptNumber(tbl, "min"),
		Max:     getOptNumber(tbl, "max"),
	}
	if def.Name == "" {
		def.Name = raw.id
	}
	if def.Type == "" {
		def.Type = inferType(def.Default)
	}
	return def
}

func inferType(v any) types.ValueType {
	switch v.(type) {
	case bool:
		return types.ValueBoolean
	case string:
		return types.ValueText
	}
	return types.ValueNumber
}

func compileResource(raw rawDef) types.ResourceDef {
	def := types.ResourceDef{StatDef: compileStat(raw)}
	def.Type = types.ValueNumber
	if regen := getTable(raw.table, "regen"); regen != nil {
		def.Regen = &types.Regeneration{
			Enabled:  getBool(regen, "enabled", true),
			Rate:     getNumber(regen, "rate"),
			Interval: getNumber(regen, "interval"),
		}
	}
	return def
}

func compileRule(raw rawDef) (types.Rule, error) {
	tbl := raw.table
	rule := types.Rule{
		ID:       raw.id,
		Name:     getString(tbl, "name"),
		Category: getString(tbl, "category"),
		Enabled:  getBool(tbl, "enabled", true),
		Priority: int(getNumber(tbl, "priority")),
		Tags:     getStrings(tbl, "tags"),
		Formula:  getString(tbl, "formula"),
	}
	if rule.Name == "" {
		rule.Name = raw.id
	}
	if t := getTable(tbl, "trigger"); t != nil {
		rule.Trigger = compileTrigger(t)
	}
	if c := getTable(tbl, "conditions"); c != nil {
		cond := compileConditionRoot(c)
		rule.Conditions = &cond
	}
	if effs := getTable(tbl, "effects"); effs != nil {
		for i := 1; i <= effs.MaxN(); i++ {
			effTbl, ok := effs.RawGetInt(i).(*lua.LTable)
			if !ok {
				return rule, fmt.Errorf("effect %d is not a table", i)
			}
			rule.Effects = append(rule.Effects, compileEffect(effTbl))
		}
	}
	if d := getTable(tbl, "duration"); d != nil {
		rule.Duration = compileDuration(d)
	}
	if m := getTable(tbl, "metadata"); m != nil {
		rule.Metadata = compileMetadata(m)
	}
	return rule, nil
}

func compileTrigger(tbl *lua.LTable) *types.Trigger {
	return &types.Trigger{
		Type:     types.TriggerType(getString(tbl, "type")),
		Action:   getString(tbl, "action"),
		ItemID:   getString(tbl, "item_id"),
		Spell:    getString(tbl, "spell"),
		Interval: getNumber(tbl, "interval"),
		Status:   getString(tbl, "status"),
		Params:   tableToAnyMap(getTable(tbl, "params")),
	}
}

// compileConditionRoot accepts a single condition, a group, or a bare array
// of conditions, which is read as ALL.
func compileConditionRoot(tbl *lua.LTable) types.Condition {
	if getString(tbl, "operator") == "" && getString(tbl, "field") == "" && tbl.MaxN() > 0 {
		return types.Condition{Operator: types.LogicAll, Conditions: compileConditionList(tbl)}
	}
	return compileCondition(tbl)
}

func compileConditionList(tbl *lua.LTable) []types.Condition {
	var out []types.Condition
	for i := 1; i <= tbl.MaxN(); i++ {
		if c, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			out = append(out, compileCondition(c))
		}
	}
	return out
}

func compileCondition(tbl *lua.LTable) types.Condition {
	c := types.Condition{
		Field:    getString(tbl, "field"),
		Operator: getString(tbl, "operator"),
		Value:    toGoValue(tbl.RawGetString("value")),
		Negate:   getBool(tbl, "negate", false),
	}
	if children := getTable(tbl, "conditions"); children != nil {
		c.Conditions = compileConditionList(children)
	}
	return c
}

func compileEffect(tbl *lua.LTable) types.Effect {
	eff := types.Effect{
		Target:       getString(tbl, "target"),
		Operation:    types.EffectOp(getString(tbl, "operation")),
		Value:        toGoValue(tbl.RawGetString("value")),
		Min:          getOptNumber(tbl, "min"),
		Max:          getOptNumber(tbl, "max"),
		TriggersRule: getString(tbl, "triggers"),
	}
	if eff.TriggersRule == "" {
		eff.TriggersRule = getString(tbl, "triggers_rule")
	}
	return eff
}

func compileDuration(tbl *lua.LTable) *types.RuleDuration {
	d := &types.RuleDuration{
		Type:    types.DurationType(getString(tbl, "type")),
		Seconds: getNumber(tbl, "seconds"),
		Formula: getString(tbl, "formula"),
	}
	if until := getTable(tbl, "until"); until != nil {
		c := compileConditionRoot(until)
		d.Until = &c
	}
	return d
}

func compileMetadata(tbl *lua.LTable) types.RuleMetadata {
	m := types.RuleMetadata{
		Description: getString(tbl, "description"),
		Author:      getString(tbl, "author"),
		Version:     getString(tbl, "version"),
	}
	if deps := getTable(tbl, "dependencies"); deps != nil {
		m.Dependencies = &types.RuleDependencies{
			AppliesAfter:   getStrings(deps, "applies_after"),
			RequiresActive: getStrings(deps, "requires_active"),
			ConflictsWith:  getStrings(deps, "conflicts_with"),
		}
	}
	return m
}
