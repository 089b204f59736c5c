// Package state holds the character-state primitives shared by the engine
// packages: seeding from a ruleset, copy-on-write cloning, typed field-path
// access, status activity and modifier aggregation.
package state

import (
	"sort"
	"time"

	"github.com/nathoo/statecore/types"
)

// DefaultResourceValue seeds resources whose default is not numeric.
const DefaultResourceValue = 100

// New creates a fresh character seeded from the ruleset's stat and resource
// definitions. customStats override stat defaults.
func New(rs *types.Ruleset, id, name string, customStats map[string]any, now time.Time) *types.CharacterState {
	s := &types.CharacterState{
		ID:          id,
		Name:        name,
		Stats:       map[string]any{},
		Resources:   types.Resources{Current: map[string]float64{}, Max: map[string]float64{}},
		Inventory:   types.Inventory{Items: []types.ItemInstance{}},
		Equipment:   map[string]*types.ItemInstance{},
		Statuses:    []types.Status{},
		Modifiers:   []types.Modifier{},
		Timers:      map[string]types.Timer{},
		Environment: types.Environment{Exposures: map[string]types.Exposure{}},
		Progression: map[string]float64{},
		Custom:      map[string]any{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rs != nil {
		s.RulesetID = rs.ID
		for _, def := range rs.Stats {
			s.Stats[def.ID] = CopyValue(def.Default)
		}
		for _, def := range rs.Resources {
			v, ok := ToFloat(def.Default)
			if !ok {
				v = DefaultResourceValue
			}
			s.Resources.Current[def.ID] = v
			s.Resources.Max[def.ID] = v
		}
	}
	for k, v := range customStats {
		s.Stats[k] = CopyValue(v)
	}
	return s
}

// Clone returns a deep copy of the character. Bookkeeping operations clone
// first and mutate the copy, so earlier references never change.
func Clone(s *types.CharacterState) *types.CharacterState {
	if s == nil {
		return nil
	}
	c := *s
	c.Stats = CopyMap(s.Stats)
	c.Custom = CopyMap(s.Custom)
	c.Resources = types.Resources{
		Current: copyFloats(s.Resources.Current),
		Max:     copyFloats(s.Resources.Max),
	}
	c.Progression = copyFloats(s.Progression)

	c.Inventory.Items = make([]types.ItemInstance, len(s.Inventory.Items))
	for i, it := range s.Inventory.Items {
		c.Inventory.Items[i] = CloneItem(it)
	}
	c.Equipment = make(map[string]*types.ItemInstance, len(s.Equipment))
	for slot, it := range s.Equipment {
		if it == nil {
			c.Equipment[slot] = nil
			continue
		}
		cp := CloneItem(*it)
		c.Equipment[slot] = &cp
	}

	c.Statuses = make([]types.Status, len(s.Statuses))
	for i, st := range s.Statuses {
		st.Data = CopyMap(st.Data)
		if st.ExpiresAt != nil {
			exp := *st.ExpiresAt
			st.ExpiresAt = &exp
		}
		c.Statuses[i] = st
	}
	c.Modifiers = append([]types.Modifier{}, s.Modifiers...)

	c.Timers = make(map[string]types.Timer, len(s.Timers))
	for k, t := range s.Timers {
		c.Timers[k] = t
	}
	c.Environment.Exposures = make(map[string]types.Exposure, len(s.Environment.Exposures))
	for k, e := range s.Environment.Exposures {
		if e.LastAppliedAt != nil {
			at := *e.LastAppliedAt
			e.LastAppliedAt = &at
		}
		c.Environment.Exposures[k] = e
	}
	return &c
}

// CloneItem deep-copies an item instance.
func CloneItem(it types.ItemInstance) types.ItemInstance {
	if it.Durability != nil {
		d := *it.Durability
		it.Durability = &d
	}
	it.Properties = CopyMap(it.Properties)
	return it
}

// IsStatusActive reports whether st is active at t: applied at or before t
// and not yet expired.
func IsStatusActive(st types.Status, t time.Time) bool {
	if st.AppliedAt.After(t) {
		return false
	}
	return st.ExpiresAt == nil || st.ExpiresAt.After(t)
}

// ActiveStatuses returns the statuses active at t, in application order.
func ActiveStatuses(s *types.CharacterState, t time.Time) []types.Status {
	var out []types.Status
	for _, st := range s.Statuses {
		if IsStatusActive(st, t) {
			out = append(out, st)
		}
	}
	return out
}

// HasActiveStatus reports whether a status with the given name is active at t.
func HasActiveStatus(s *types.CharacterState, name string, t time.Time) bool {
	for _, st := range s.Statuses {
		if st.Name == name && IsStatusActive(st, t) {
			return true
		}
	}
	return false
}

// EffectiveStat folds the stat's modifiers over its base value in
// descending priority order; equal priorities keep insertion order.
// Non-numeric or missing bases start from 0.
func EffectiveStat(s *types.CharacterState, stat string) float64 {
	base, _ := ToFloat(s.Stats[stat])

	var mods []types.Modifier
	for _, m := range s.Modifiers {
		if m.Stat == stat {
			mods = append(mods, m)
		}
	}
	sort.SliceStable(mods, func(i, j int) bool {
		return mods[i].Priority > mods[j].Priority
	})

	v := base
	for _, m := range mods {
		switch m.Operation {
		case types.ModAdd:
			v += m.Value
		case types.ModMultiply:
			v *= m.Value
		case types.ModSet:
			v = m.Value
		}
	}
	return v
}

func copyFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
