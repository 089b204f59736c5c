package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nathoo/statecore/types"
)

func TestMatchesTrigger(t *testing.T) {
	attack := types.Rule{ID: "a", Enabled: true, Trigger: &types.Trigger{Type: types.TriggerOnAction, Action: "attack"}}
	anyAction := types.Rule{ID: "b", Enabled: true, Trigger: &types.Trigger{Type: types.TriggerOnAction}}
	potion := types.Rule{ID: "c", Enabled: true, Trigger: &types.Trigger{Type: types.TriggerOnConsumeItem, ItemID: "potion"}}

	tests := []struct {
		name string
		rule types.Rule
		tt   types.TriggerType
		data map[string]any
		want bool
	}{
		{"type matches without data", attack, types.TriggerOnAction, nil, true},
		{"action agrees", attack, types.TriggerOnAction, map[string]any{"action": "attack"}, true},
		{"action differs", attack, types.TriggerOnAction, map[string]any{"action": "defend"}, false},
		{"data without key", attack, types.TriggerOnAction, map[string]any{"target": "orc"}, true},
		{"unconfigured action accepts any", anyAction, types.TriggerOnAction, map[string]any{"action": "defend"}, true},
		{"type differs", attack, types.TriggerManual, nil, false},
		{"item agrees", potion, types.TriggerOnConsumeItem, map[string]any{"itemId": "potion"}, true},
		{"item differs", potion, types.TriggerOnConsumeItem, map[string]any{"itemId": "bread"}, false},
		{"disabled", types.Rule{ID: "d", Trigger: &types.Trigger{Type: types.TriggerOnAction}}, types.TriggerOnAction, nil, false},
		{"no trigger", types.Rule{ID: "e", Enabled: true}, types.TriggerOnAction, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesTrigger(tt.rule, tt.tt, tt.data))
		})
	}
}

func TestIntervalDue(t *testing.T) {
	assert.True(t, IntervalDue(&types.Trigger{Interval: 60}, 60))
	assert.True(t, IntervalDue(&types.Trigger{Interval: 0}, 1))
	assert.False(t, IntervalDue(&types.Trigger{Interval: 60}, 30))
	assert.False(t, IntervalDue(nil, 60))
}

func TestMatchesStatus(t *testing.T) {
	assert.True(t, MatchesStatus(&types.Trigger{Status: "burning"}, "burning"))
	assert.False(t, MatchesStatus(&types.Trigger{Status: "burning"}, "frozen"))
	assert.True(t, MatchesStatus(&types.Trigger{}, "frozen"))
	assert.False(t, MatchesStatus(nil, "frozen"))
}
