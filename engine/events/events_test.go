package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatch_MatchesEventType(t *testing.T) {
	var d Dispatcher
	var got []string
	d.On(StatusApplied, func(ev Event) { got = append(got, "status:"+ev.Subject) })
	d.On(TimerExpired, func(ev Event) { got = append(got, "timer:"+ev.Subject) })

	d.Dispatch([]Event{
		{Type: StatusApplied, Subject: "poisoned"},
		{Type: ItemUsed, Subject: "sword"},
		{Type: TimerExpired, Subject: "haste"},
	})
	assert.Equal(t, []string{"status:poisoned", "timer:haste"}, got)
}

func TestDispatch_TypeHandlersBeforeCatchAll(t *testing.T) {
	var d Dispatcher
	var order []string
	d.OnAny(func(Event) { order = append(order, "any") })
	d.On(RuleApplied, func(Event) { order = append(order, "typed") })

	d.Dispatch([]Event{{Type: RuleApplied}})
	assert.Equal(t, []string{"typed", "any"}, order)
}

func TestDispatch_SinglePass(t *testing.T) {
	var d Dispatcher
	var rec Recorder
	d.OnAny(rec.Record)
	d.On(ItemBroken, func(ev Event) {
		// Handlers cannot feed events back into the pass being dispatched.
		rec.Record(Event{Type: LegacyPromoted})
	})

	d.Dispatch([]Event{{Type: ItemBroken}})
	assert.Equal(t, []Type{LegacyPromoted, ItemBroken}, rec.Types())
}

func TestDispatch_NilDispatcher(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() { d.Dispatch([]Event{{Type: RuleApplied}}) })
}

func TestRecorder_Reset(t *testing.T) {
	var rec Recorder
	rec.Record(Event{Type: CharacterCreated})
	assert.Len(t, rec.Events, 1)
	rec.Reset()
	assert.Empty(t, rec.Events)
}
