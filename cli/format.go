package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/statecore/engine/formula"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return formatNumber(x)
	case string:
		return x
	case nil:
		return "-"
	default:
		return fmt.Sprint(x)
	}
}

func formatData(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, k+"="+formatValue(m[k]))
	}
	return strings.Join(parts, " ")
}

// formatRolls renders dice rolls as " [2d6: 3+5]".
func formatRolls(rolls []formula.Roll) string {
	if len(rolls) == 0 {
		return ""
	}
	parts := make([]string, 0, len(rolls))
	for _, r := range rolls {
		faces := make([]string, len(r.Results))
		for i, n := range r.Results {
			faces[i] = strconv.Itoa(n)
		}
		parts = append(parts, r.Notation+": "+strings.Join(faces, "+"))
	}
	return " [" + strings.Join(parts, ", ") + "]"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResourceSummary renders "health 80/100, mana 50/50".
func ResourceSummary(c *types.CharacterState) string {
	ids := sortedKeys(c.Resources.Max)
	if len(ids) == 0 {
		return "no resources"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s %s/%s", id,
			formatNumber(c.Resources.Current[id]), formatNumber(c.Resources.Max[id])))
	}
	return strings.Join(parts, ", ")
}

// sheet renders a character for the show command.
func (s *Session) sheet(c *types.CharacterState) []string {
	lines := []string{fmt.Sprintf("%s [%s] ruleset %s", c.Name, c.ID, c.RulesetID)}

	effective, _ := s.Engine.GetEffectiveStats(c.ID)
	var stats []string
	for _, k := range sortedKeys(c.Stats) {
		entry := k + " " + formatValue(c.Stats[k])
		if base, ok := state.ToFloat(c.Stats[k]); ok {
			if eff, ok := effective[k]; ok && eff != base {
				entry += " (" + formatNumber(eff) + ")"
			}
		}
		stats = append(stats, entry)
	}
	lines = append(lines, "Stats: "+joinOrNone(stats))
	lines = append(lines, "Resources: "+ResourceSummary(c))

	var statuses []string
	for _, st := range c.Statuses {
		entry := st.Name
		if st.ExpiresAt != nil {
			entry += " until " + st.ExpiresAt.Format("15:04:05")
		}
		statuses = append(statuses, entry)
	}
	lines = append(lines, "Statuses: "+joinOrNone(statuses))

	var mods []string
	for _, m := range c.Modifiers {
		mods = append(mods, fmt.Sprintf("%s %s %s [%s]", m.Stat, m.Operation, formatNumber(m.Value), m.ID))
	}
	lines = append(lines, "Modifiers: "+joinOrNone(mods))

	var timers []string
	for _, id := range sortedKeys(c.Timers) {
		t := c.Timers[id]
		entry := fmt.Sprintf("%s %ss left", id, formatNumber(t.Remaining))
		if t.Paused {
			entry += " (paused)"
		}
		timers = append(timers, entry)
	}
	lines = append(lines, "Timers: "+joinOrNone(timers))

	var items []string
	for _, it := range c.Inventory.Items {
		items = append(items, itemLine(it))
	}
	for _, slot := range sortedKeys(c.Equipment) {
		if it := c.Equipment[slot]; it != nil {
			items = append(items, slot+": "+itemLine(*it))
		}
	}
	lines = append(lines, "Items: "+joinOrNone(items))

	var exposures []string
	for _, k := range sortedKeys(c.Environment.Exposures) {
		exposures = append(exposures, fmt.Sprintf("%s %ss", k, formatNumber(c.Environment.Exposures[k].TotalSeconds)))
	}
	if len(exposures) > 0 {
		lines = append(lines, "Exposure: "+strings.Join(exposures, ", "))
	}
	if len(c.Progression) > 0 {
		var prog []string
		for _, k := range sortedKeys(c.Progression) {
			prog = append(prog, k+" "+formatNumber(c.Progression[k]))
		}
		lines = append(lines, "Progression: "+strings.Join(prog, ", "))
	}
	if len(c.Custom) > 0 {
		lines = append(lines, "Custom: "+formatData(c.Custom))
	}
	return lines
}

func itemLine(it types.ItemInstance) string {
	line := fmt.Sprintf("%s [%s]", it.DisplayName(), it.ID)
	if it.Durability != nil {
		line += fmt.Sprintf(" %s/%s", formatNumber(*it.Durability), formatNumber(it.MaxDurability))
	}
	if it.UsageCount > 0 {
		line += fmt.Sprintf(" used %d", it.UsageCount)
	}
	return line
}

func joinOrNone(parts []string) string {
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
