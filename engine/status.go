package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/nathoo/statecore/engine/events"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// StatusSpec describes a status to apply.
type StatusSpec struct {
	Name         string
	SourceRuleID string
	Duration     time.Duration // zero: no expiry
	Data         map[string]any
}

// AddStatus applies a status to a character and returns the stored status.
func (e *Engine) AddStatus(id string, spec StatusSpec) (types.Status, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return types.Status{}, err
	}
	if spec.Name == "" {
		return types.Status{}, errors.New("status needs a name")
	}
	st := e.newStatus(spec)
	next := state.Clone(c)
	next.Statuses = append(next.Statuses, st)
	e.commit(next, []events.Event{e.event(events.StatusApplied, id, st.Name, map[string]any{"statusId": st.ID})})
	return st, nil
}

func (e *Engine) newStatus(spec StatusSpec) types.Status {
	now := e.clock()
	st := types.Status{
		ID:           e.newID(),
		Name:         spec.Name,
		SourceRuleID: spec.SourceRuleID,
		AppliedAt:    now,
		Data:         state.CopyMap(spec.Data),
	}
	if spec.Duration > 0 {
		exp := now.Add(spec.Duration)
		st.ExpiresAt = &exp
	}
	return st
}

// RemoveStatus removes every status whose instance id or name equals
// idOrName and returns how many were removed.
func (e *Engine) RemoveStatus(id, idOrName string) (int, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return 0, err
	}
	next := state.Clone(c)
	kept := next.Statuses[:0]
	var evts []events.Event
	for _, st := range next.Statuses {
		if st.ID == idOrName || st.Name == idOrName {
			evts = append(evts, e.event(events.StatusRemoved, id, st.Name, map[string]any{"statusId": st.ID}))
			continue
		}
		kept = append(kept, st)
	}
	if len(evts) == 0 {
		return 0, nil
	}
	next.Statuses = kept
	e.commit(next, evts)
	return len(evts), nil
}

// AddModifier attaches a standing stat modifier. An empty ID is generated.
func (e *Engine) AddModifier(id string, m types.Modifier) (types.Modifier, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return types.Modifier{}, err
	}
	switch m.Operation {
	case types.ModAdd, types.ModMultiply, types.ModSet:
	default:
		return types.Modifier{}, fmt.Errorf("unknown modifier operation %q", m.Operation)
	}
	if m.Stat == "" {
		return types.Modifier{}, errors.New("modifier needs a stat")
	}
	if m.ID == "" {
		m.ID = e.newID()
	}
	next := state.Clone(c)
	next.Modifiers = append(next.Modifiers, m)
	e.commit(next, []events.Event{e.event(events.ModifierAdded, id, m.ID, map[string]any{
		"stat": m.Stat, "operation": string(m.Operation), "value": m.Value,
	})})
	return m, nil
}

// RemoveModifier removes a modifier by id. It reports whether one was found.
func (e *Engine) RemoveModifier(id, modifierID string) (bool, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return false, err
	}
	idx := -1
	for i, m := range c.Modifiers {
		if m.ID == modifierID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}
	next := state.Clone(c)
	next.Modifiers = append(next.Modifiers[:idx], next.Modifiers[idx+1:]...)
	e.commit(next, []events.Event{e.event(events.ModifierRemoved, id, modifierID, nil)})
	return true, nil
}

// GetEffectiveStat folds a stat's modifiers over its base value.
func (e *Engine) GetEffectiveStat(id, stat string) (float64, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return 0, err
	}
	return state.EffectiveStat(c, stat), nil
}

// GetEffectiveStats returns the effective value of every numeric stat and
// of every stat a modifier targets.
func (e *Engine) GetEffectiveStats(id string) (map[string]float64, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return nil, err
	}
	out := map[string]float64{}
	for k, v := range c.Stats {
		if state.IsNumber(v) {
			out[k] = state.EffectiveStat(c, k)
		}
	}
	for _, m := range c.Modifiers {
		if _, done := out[m.Stat]; !done {
			out[m.Stat] = state.EffectiveStat(c, m.Stat)
		}
	}
	return out, nil
}
