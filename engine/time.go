package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/nathoo/statecore/engine/events"
	"github.com/nathoo/statecore/engine/rules"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// DefaultTickSeconds converts ticks to seconds when no tick length is given.
const DefaultTickSeconds = 60

// AdvanceMode selects the unit of AdvanceTime's amount.
type AdvanceMode string

const (
	ModeSeconds AdvanceMode = "seconds"
	ModeTicks   AdvanceMode = "ticks"
)

// AdvanceOptions configures AdvanceTime.
type AdvanceOptions struct {
	Mode        AdvanceMode
	TickSeconds float64 // DefaultTickSeconds when zero
}

// Tick reports what one time step did.
type Tick struct {
	State           *types.CharacterState
	Seconds         float64
	ExpiredTimers   []string
	ExpiredStatuses []string
	Regenerated     map[string]float64 // resource id to amount gained
	Results         []rules.Result
}

// AdvanceTime advances a character by amount seconds, or by amount ticks
// in ModeTicks.
func (e *Engine) AdvanceTime(id string, amount float64, opts AdvanceOptions) (Tick, error) {
	seconds := amount
	if opts.Mode == ModeTicks {
		tick := opts.TickSeconds
		if tick <= 0 {
			tick = DefaultTickSeconds
		}
		seconds = amount * tick
	}
	return e.ProcessTimeElapsed(id, seconds)
}

// ProcessTimeElapsed runs the time pipeline for the elapsed seconds, in
// order: count down running timers, drop expired statuses, regenerate
// resources, evaluate due time_elapsed rules, then evaluate status_active
// rules once per matching active status.
func (e *Engine) ProcessTimeElapsed(id string, seconds float64) (Tick, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return Tick{}, err
	}
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return Tick{}, fmt.Errorf("elapsed seconds must be a finite non-negative number, got %v", seconds)
	}

	now := e.clock()
	next := state.Clone(c)
	tick := Tick{Seconds: seconds, Regenerated: map[string]float64{}}
	var evts []events.Event

	// Timers.
	timerIDs := make([]string, 0, len(next.Timers))
	for ruleID := range next.Timers {
		timerIDs = append(timerIDs, ruleID)
	}
	sort.Strings(timerIDs)
	for _, ruleID := range timerIDs {
		t := next.Timers[ruleID]
		if t.Paused {
			continue
		}
		t.Remaining -= seconds
		if t.Remaining <= 0 {
			delete(next.Timers, ruleID)
			tick.ExpiredTimers = append(tick.ExpiredTimers, ruleID)
			evts = append(evts, e.event(events.TimerExpired, id, ruleID, nil))
			continue
		}
		next.Timers[ruleID] = t
	}

	// Statuses.
	kept := next.Statuses[:0]
	for _, st := range next.Statuses {
		if st.ExpiresAt != nil && !st.ExpiresAt.After(now) {
			tick.ExpiredStatuses = append(tick.ExpiredStatuses, st.Name)
			evts = append(evts, e.event(events.StatusExpired, id, st.Name, map[string]any{"statusId": st.ID}))
			continue
		}
		kept = append(kept, st)
	}
	next.Statuses = kept

	// Regeneration.
	for _, def := range e.ruleset.Resources {
		r := def.Regen
		if r == nil || !r.Enabled || r.Interval <= 0 {
			continue
		}
		cur, ok := next.Resources.Current[def.ID]
		if !ok {
			continue
		}
		v := cur + seconds/r.Interval*r.Rate
		if maxV, ok := next.Resources.Max[def.ID]; ok && v > maxV {
			v = maxV
		}
		if v == cur {
			continue
		}
		next.Resources.Current[def.ID] = v
		tick.Regenerated[def.ID] = v - cur
		evts = append(evts, e.event(events.ResourceRegen, id, def.ID, map[string]any{"amount": v - cur, "current": v}))
	}

	// Time-elapsed rules.
	s := next
	for _, rule := range e.ruleset.Rules {
		if !rule.Enabled || rule.Trigger == nil || rule.Trigger.Type != types.TriggerTimeElapsed {
			continue
		}
		if !rules.IntervalDue(rule.Trigger, seconds) {
			continue
		}
		res, err := e.orch.EvaluateRule(rule, s)
		if err != nil {
			return Tick{}, err
		}
		s = res.State
		tick.Results = append(tick.Results, res)
	}

	// Status-active rules.
	active := state.ActiveStatuses(s, now)
	for _, rule := range e.ruleset.Rules {
		if !rule.Enabled || rule.Trigger == nil || rule.Trigger.Type != types.TriggerStatusActive {
			continue
		}
		for _, st := range active {
			if !rules.MatchesStatus(rule.Trigger, st.Name) || !rules.IntervalDue(rule.Trigger, seconds) {
				continue
			}
			res, err := e.orch.EvaluateRule(rule, s)
			if err != nil {
				return Tick{}, err
			}
			s = res.State
			tick.Results = append(tick.Results, res)
		}
	}

	evts = append(evts, e.ruleEvents(id, tick.Results)...)
	tick.State = e.commit(s, evts)
	e.log.Debug().
		Str("character", id).
		Float64("seconds", seconds).
		Int("timers_expired", len(tick.ExpiredTimers)).
		Int("statuses_expired", len(tick.ExpiredStatuses)).
		Int("rules", len(tick.Results)).
		Msg("time advanced")
	return tick, nil
}

// PauseTimer stops a rule timer from counting down.
func (e *Engine) PauseTimer(id, ruleID string) error {
	return e.updateTimer(id, ruleID, func(t *types.Timer) { t.Paused = true })
}

// ResumeTimer lets a paused rule timer count down again.
func (e *Engine) ResumeTimer(id, ruleID string) error {
	return e.updateTimer(id, ruleID, func(t *types.Timer) { t.Paused = false })
}

// CancelTimer removes a rule timer.
func (e *Engine) CancelTimer(id, ruleID string) error {
	return e.updateTimer(id, ruleID, nil)
}

func (e *Engine) updateTimer(id, ruleID string, fn func(t *types.Timer)) error {
	c, err := e.GetCharacter(id)
	if err != nil {
		return err
	}
	t, ok := c.Timers[ruleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTimerNotFound, ruleID)
	}
	next := state.Clone(c)
	if fn == nil {
		delete(next.Timers, ruleID)
	} else {
		fn(&t)
		next.Timers[ruleID] = t
	}
	e.commit(next, nil)
	return nil
}
