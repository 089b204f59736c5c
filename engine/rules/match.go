package rules

import (
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// Trigger data keys consulted by MatchesTrigger.
const (
	DataAction = "action"
	DataItemID = "itemId"
	DataSpell  = "spell"
	DataStatus = "status"
)

// MatchesTrigger checks if a rule's trigger accepts the given trigger type
// and data. Disabled rules and rules without a trigger never match. When the
// rule names an action, item, spell or status and data carries the same key,
// the values must agree; data without the key does not narrow the match.
func MatchesTrigger(rule types.Rule, tt types.TriggerType, data map[string]any) bool {
	if !rule.Enabled || rule.Trigger == nil || rule.Trigger.Type != tt {
		return false
	}
	t := rule.Trigger
	if !paramAgrees(t.Action, data, DataAction) {
		return false
	}
	if !paramAgrees(t.ItemID, data, DataItemID) {
		return false
	}
	if !paramAgrees(t.Spell, data, DataSpell) {
		return false
	}
	if !paramAgrees(t.Status, data, DataStatus) {
		return false
	}
	return true
}

func paramAgrees(want string, data map[string]any, key string) bool {
	if want == "" || data == nil {
		return true
	}
	got, ok := data[key]
	if !ok {
		return true
	}
	return state.Equal(got, want)
}

// IntervalDue reports whether a time-based trigger fires for the given
// elapsed seconds: its configured interval must not exceed them.
func IntervalDue(t *types.Trigger, seconds float64) bool {
	if t == nil {
		return false
	}
	return t.Interval <= seconds
}

// MatchesStatus reports whether a status_active trigger watches the named
// status. An unconfigured trigger watches every status.
func MatchesStatus(t *types.Trigger, name string) bool {
	if t == nil {
		return false
	}
	return t.Status == "" || t.Status == name
}
