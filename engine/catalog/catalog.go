// Package catalog answers which rules a character can currently use.
package catalog

import (
	"sort"

	"github.com/nathoo/statecore/engine/rules"
	"github.com/nathoo/statecore/types"
)

// Entry describes one rule as seen by a particular character.
type Entry struct {
	ID          string
	Name        string
	Description string
	Trigger     types.TriggerType // empty for rules without a trigger
	Priority    int
	Ready       bool // conditions currently hold
	Effects     []types.Effect
}

// Available returns the enabled rules whose conditions hold for s, highest
// priority first. A non-empty tt keeps only rules with that trigger type.
func Available(rs *types.Ruleset, s *types.CharacterState, tt types.TriggerType) []Entry {
	var out []Entry
	for _, r := range rs.Rules {
		if !r.Enabled {
			continue
		}
		if tt != "" && (r.Trigger == nil || r.Trigger.Type != tt) {
			continue
		}
		if e := entry(r, s); e.Ready {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Describe returns the entry for ruleID whether or not its conditions hold.
// It reports false for unknown rules.
func Describe(rs *types.Ruleset, s *types.CharacterState, ruleID string) (Entry, bool) {
	r, ok := rs.Rule(ruleID)
	if !ok {
		return Entry{}, false
	}
	return entry(r, s), true
}

func entry(r types.Rule, s *types.CharacterState) Entry {
	e := Entry{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Metadata.Description,
		Priority:    r.Priority,
		Ready:       r.Enabled && rules.Evaluate(r.Conditions, s),
		Effects:     r.Effects,
	}
	if e.Name == "" {
		e.Name = r.ID
	}
	if r.Trigger != nil {
		e.Trigger = r.Trigger.Type
	}
	return e
}
