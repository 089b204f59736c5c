// Package events implements single-pass event dispatch. The engine collects
// events while an operation runs and dispatches them once the new state has
// been stored. Handlers observe events; they cannot emit further events into
// the same pass.
package events

import "time"

// Type names an engine event.
type Type string

const (
	CharacterCreated Type = "character_created"
	CharacterDeleted Type = "character_deleted"
	RuleApplied      Type = "rule_applied"
	RuleFailed       Type = "rule_failed"
	TimerStarted     Type = "timer_started"
	TimerExpired     Type = "timer_expired"
	StatusApplied    Type = "status_applied"
	StatusRemoved    Type = "status_removed"
	StatusExpired    Type = "status_expired"
	ModifierAdded    Type = "modifier_added"
	ModifierRemoved  Type = "modifier_removed"
	ResourceRegen    Type = "resource_regenerated"
	ExposureRecorded Type = "exposure_recorded"
	AilmentApplied   Type = "ailment_applied"
	ItemUsed         Type = "item_used"
	ItemBroken       Type = "item_broken"
	LegacyPromoted   Type = "legacy_promoted"
	DamageTaken      Type = "damage_taken"
)

// Event is something that happened to a character.
type Event struct {
	Type        Type           `json:"type"`
	CharacterID string         `json:"characterId"`
	Subject     string         `json:"subject,omitempty"` // rule, status, item or resource id
	Data        map[string]any `json:"data,omitempty"`
	At          time.Time      `json:"at"`
}

// Handler observes an event.
type Handler func(Event)

// Dispatcher routes events to handlers registered per type or for all types.
// The zero value is ready to use.
type Dispatcher struct {
	byType map[Type][]Handler
	all    []Handler
}

// On registers h for events of type t.
func (d *Dispatcher) On(t Type, h Handler) {
	if d.byType == nil {
		d.byType = map[Type][]Handler{}
	}
	d.byType[t] = append(d.byType[t], h)
}

// OnAny registers h for every event.
func (d *Dispatcher) OnAny(h Handler) {
	d.all = append(d.all, h)
}

// Dispatch delivers each event once, in order: type handlers first, then
// catch-all handlers in registration order.
func (d *Dispatcher) Dispatch(evts []Event) {
	if d == nil {
		return
	}
	for _, ev := range evts {
		for _, h := range d.byType[ev.Type] {
			h(ev)
		}
		for _, h := range d.all {
			h(ev)
		}
	}
}

// Recorder collects events in memory. Tests and the console trace use it.
type Recorder struct {
	Events []Event
}

// Record appends ev.
func (r *Recorder) Record(ev Event) {
	r.Events = append(r.Events, ev)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	out := make([]Type, len(r.Events))
	for i, ev := range r.Events {
		out[i] = ev.Type
	}
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.Events = nil
}
