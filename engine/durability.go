package engine

import (
	"fmt"

	"github.com/nathoo/statecore/engine/events"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// Progression ledger keys credited when an item breaks.
const (
	CurrencyScrap   = "scrap"
	CurrencyInsight = "insight"
)

// DefaultLegacyTitles name legacy tiers 1 and up; tiers past the list reuse
// the last title.
var DefaultLegacyTitles = []string{"Seasoned", "Veteran", "Heirloom", "Legendary"}

// DurabilityOptions configures one recorded use of an item.
type DurabilityOptions struct {
	// Cost is subtracted from tracked durability. Zero means 1.
	Cost float64
	// AllowBreak removes an item whose durability reaches zero. Otherwise
	// the item stays at zero durability.
	AllowBreak bool
	// LegacyUsageThreshold promotes the item one legacy tier every time its
	// usage count reaches a multiple of it. Zero disables promotion.
	LegacyUsageThreshold int
	// LegacyYieldIncrement is added to the yield bonus on each promotion.
	LegacyYieldIncrement float64
	// LegacyTitles overrides DefaultLegacyTitles.
	LegacyTitles []string
	// ScrapPerBreak and InsightPerBreak are credited on break, scaled by
	// 1 + legacy tier.
	ScrapPerBreak   float64
	InsightPerBreak float64
}

// DurabilityResult describes what one recorded use did.
type DurabilityResult struct {
	Item       types.ItemInstance
	Slot       string // equipment slot, empty for inventory
	UsageCount int
	TierUp     bool
	NewTier    int
	Broken     bool // durability reached zero
	Removed    bool
	Scrap      float64
	Insight    float64
	State      *types.CharacterState
}

// ApplyItemDurability records one use of an item found in the inventory or
// an equipment slot. Legacy promotion depends on usage only; durability wear
// applies afterwards when the item tracks durability.
func (e *Engine) ApplyItemDurability(id, itemInstanceID string, opts DurabilityOptions) (DurabilityResult, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return DurabilityResult{}, err
	}
	next := state.Clone(c)
	item, slot, idx := findItem(next, itemInstanceID)
	if item == nil {
		return DurabilityResult{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemInstanceID)
	}

	res := DurabilityResult{Slot: slot}
	evts := []events.Event{}

	item.UsageCount++
	res.UsageCount = item.UsageCount
	if th := opts.LegacyUsageThreshold; th > 0 {
		gained := item.UsageCount/th - (item.UsageCount-1)/th
		if gained > 0 {
			item.LegacyTier += gained
			item.YieldBonusPercent += opts.LegacyYieldIncrement * float64(gained)
			item.LegacyName = legacyTitle(opts.LegacyTitles, item.LegacyTier) + " " + item.Name
			res.TierUp = true
			evts = append(evts, e.event(events.LegacyPromoted, id, item.ID, map[string]any{
				"tier": item.LegacyTier, "name": item.LegacyName,
			}))
		}
	}
	res.NewTier = item.LegacyTier
	evts = append(evts, e.event(events.ItemUsed, id, item.ID, map[string]any{"usage": item.UsageCount}))

	if item.Durability != nil {
		cost := opts.Cost
		if cost <= 0 {
			cost = 1
		}
		d := *item.Durability - cost
		if d <= 0 {
			d = 0
			res.Broken = true
		}
		item.Durability = &d
	}

	if res.Broken && opts.AllowBreak {
		item.BreakCount++
		scale := float64(1 + item.LegacyTier)
		res.Scrap = opts.ScrapPerBreak * scale
		res.Insight = opts.InsightPerBreak * scale
		if res.Scrap != 0 {
			next.Progression[CurrencyScrap] += res.Scrap
		}
		if res.Insight != 0 {
			next.Progression[CurrencyInsight] += res.Insight
		}
		evts = append(evts, e.event(events.ItemBroken, id, item.ID, map[string]any{
			"scrap": res.Scrap, "insight": res.Insight,
		}))
		res.Removed = true
	}

	// Copy out before removal shifts the inventory under item.
	res.Item = state.CloneItem(*item)
	if res.Removed {
		removeItem(next, slot, idx)
	}
	res.State = e.commit(next, evts)
	return res, nil
}

// findItem locates an item instance. It returns a pointer into s, the
// equipment slot (empty for inventory) and the inventory index.
func findItem(s *types.CharacterState, itemInstanceID string) (*types.ItemInstance, string, int) {
	for i := range s.Inventory.Items {
		if s.Inventory.Items[i].ID == itemInstanceID {
			return &s.Inventory.Items[i], "", i
		}
	}
	for slot, it := range s.Equipment {
		if it != nil && it.ID == itemInstanceID {
			return it, slot, -1
		}
	}
	return nil, "", -1
}

func removeItem(s *types.CharacterState, slot string, idx int) {
	if slot != "" {
		s.Equipment[slot] = nil
		return
	}
	s.Inventory.Items = append(s.Inventory.Items[:idx], s.Inventory.Items[idx+1:]...)
}

func legacyTitle(titles []string, tier int) string {
	if len(titles) == 0 {
		titles = DefaultLegacyTitles
	}
	if tier > len(titles) {
		tier = len(titles)
	}
	return titles[tier-1]
}
