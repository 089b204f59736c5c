package loader

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/statecore/types"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerTriggerHelpers(L)
	registerConditionHelpers(L)
	registerEffectHelpers(L)
	registerDurationHelpers(L)
}

// curried returns a constructor used as Name "id" { ... }.
func curried(L *lua.LState, fn func(id string, tbl *lua.LTable)) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			fn(id, L.CheckTable(1))
			return 0
		}))
		return 1
	})
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Ruleset { id = "...", name = "...", version = "..." }
	L.SetGlobal("Ruleset", L.NewFunction(func(L *lua.LState) int {
		coll.ruleset = L.CheckTable(1)
		return 0
	}))

	// Stat "STR" { name = "Strength", type = "number", default = 10, min = 0 }
	L.SetGlobal("Stat", curried(L, func(id string, tbl *lua.LTable) {
		coll.stats = append(coll.stats, rawDef{id: id, table: tbl})
	}))

	// Resource "health" { default = 100, regen = { rate = 1, interval = 60 } }
	L.SetGlobal("Resource", curried(L, func(id string, tbl *lua.LTable) {
		coll.resources = append(coll.resources, rawDef{id: id, table: tbl})
	}))

	// Rule "id" { trigger = ..., conditions = ..., effects = { ... } }
	L.SetGlobal("Rule", curried(L, func(id string, tbl *lua.LTable) {
		coll.rules = append(coll.rules, rawDef{id: id, table: tbl})
	}))
}

// tagged builds a helper returning { [key] = value, args... }.
func tagged(L *lua.LState, key, value string, names ...string) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString(key, lua.LString(value))
		for i, name := range names {
			if v := L.Get(i + 1); v != lua.LNil {
				tbl.RawSetString(name, v)
			}
		}
		L.Push(tbl)
		return 1
	})
}

func registerTriggerHelpers(L *lua.LState) {
	L.SetGlobal("OnAction", tagged(L, "type", string(types.TriggerOnAction), "action"))
	L.SetGlobal("OnConsumeItem", tagged(L, "type", string(types.TriggerOnConsumeItem), "item_id"))
	L.SetGlobal("OnEquipItem", tagged(L, "type", string(types.TriggerOnEquipItem), "item_id"))
	L.SetGlobal("OnDamage", tagged(L, "type", string(types.TriggerOnDamageCalculation)))
	L.SetGlobal("OnCastSpell", tagged(L, "type", string(types.TriggerOnCastSpell), "spell"))
	L.SetGlobal("TimeElapsed", tagged(L, "type", string(types.TriggerTimeElapsed), "interval"))
	L.SetGlobal("StatusActive", tagged(L, "type", string(types.TriggerStatusActive), "status", "interval"))
	L.SetGlobal("Passive", tagged(L, "type", string(types.TriggerPassive)))
	L.SetGlobal("Manual", tagged(L, "type", string(types.TriggerManual)))
}

func registerConditionHelpers(L *lua.LState) {
	// Cond("stats.STR", ">=", 10)
	L.SetGlobal("Cond", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("field", lua.LString(L.CheckString(1)))
		tbl.RawSetString("operator", lua.LString(L.CheckString(2)))
		tbl.RawSetString("value", L.Get(3))
		L.Push(tbl)
		return 1
	}))

	// HasStatus("poisoned")
	L.SetGlobal("HasStatus", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("field", lua.LString("statuses"))
		tbl.RawSetString("operator", lua.LString("contains"))
		tbl.RawSetString("value", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	group := func(op string) *lua.LFunction {
		return L.NewFunction(func(L *lua.LState) int {
			tbl := L.NewTable()
			tbl.RawSetString("operator", lua.LString(op))
			tbl.RawSetString("conditions", L.CheckTable(1))
			L.Push(tbl)
			return 1
		})
	}
	// All { c1, c2 }, Any { ... }, None { ... }
	L.SetGlobal("All", group(types.LogicAll))
	L.SetGlobal("Any", group(types.LogicAny))
	L.SetGlobal("None", group(types.LogicNone))

	// Not(condition) flips the negate flag of a copy.
	L.SetGlobal("Not", L.NewFunction(func(L *lua.LState) int {
		inner := L.CheckTable(1)
		tbl := L.NewTable()
		inner.ForEach(func(k, v lua.LValue) { tbl.RawSet(k, v) })
		tbl.RawSetString("negate", lua.LBool(!lua.LVAsBool(inner.RawGetString("negate"))))
		L.Push(tbl)
		return 1
	}))
}

func registerEffectHelpers(L *lua.LState) {
	// Op("stats.STR", value [, { min =, max =, triggers = }])
	op := func(operation types.EffectOp) *lua.LFunction {
		return L.NewFunction(func(L *lua.LState) int {
			tbl := L.NewTable()
			tbl.RawSetString("target", lua.LString(L.CheckString(1)))
			tbl.RawSetString("operation", lua.LString(string(operation)))
			tbl.RawSetString("value", L.Get(2))
			if opts, ok := L.Get(3).(*lua.LTable); ok {
				opts.ForEach(func(k, v lua.LValue) { tbl.RawSet(k, v) })
			}
			L.Push(tbl)
			return 1
		})
	}
	L.SetGlobal("Set", op(types.OpSet))
	L.SetGlobal("Add", op(types.OpAdd))
	L.SetGlobal("Subtract", op(types.OpSubtract))
	L.SetGlobal("Multiply", op(types.OpMultiply))
	L.SetGlobal("Divide", op(types.OpDivide))
	L.SetGlobal("Append", op(types.OpAppend))
	L.SetGlobal("Remove", op(types.OpRemove))

	// Effect { target = ..., operation = ..., value = ... } passes the table through.
	L.SetGlobal("Effect", L.NewFunction(func(L *lua.LState) int {
		L.Push(L.CheckTable(1))
		return 1
	}))
}

func registerDurationHelpers(L *lua.LState) {
	L.SetGlobal("Timed", tagged(L, "type", string(types.DurationTimed), "seconds"))
	L.SetGlobal("Calculated", tagged(L, "type", string(types.DurationCalculated), "formula"))
	L.SetGlobal("Permanent", tagged(L, "type", string(types.DurationPermanent)))
	L.SetGlobal("Until", tagged(L, "type", string(types.DurationUntilCondition), "until"))
}
