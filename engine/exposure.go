package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/nathoo/statecore/engine/events"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// AilmentDef applies a status once accumulated exposure reaches a threshold.
type AilmentDef struct {
	ExposureKey      string         `json:"exposureKey" yaml:"exposure_key"`
	StatusName       string         `json:"statusName" yaml:"status"`
	TriggerAtSeconds float64        `json:"triggerAtSeconds" yaml:"trigger_at_seconds"`
	CooldownSeconds  float64        `json:"cooldownSeconds,omitempty" yaml:"cooldown_seconds,omitempty"`
	DurationSeconds  float64        `json:"durationSeconds,omitempty" yaml:"duration_seconds,omitempty"`
	Data             map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// RecordExposure adds seconds of contact with an environmental hazard.
func (e *Engine) RecordExposure(id, key string, seconds float64) (types.Exposure, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return types.Exposure{}, err
	}
	if key == "" {
		return types.Exposure{}, errors.New("exposure needs a key")
	}
	if seconds < 0 {
		return types.Exposure{}, fmt.Errorf("exposure seconds must not be negative, got %v", seconds)
	}
	next := state.Clone(c)
	exp := next.Environment.Exposures[key]
	exp.TotalSeconds += seconds
	exp.LastUpdated = e.clock()
	next.Environment.Exposures[key] = exp
	e.commit(next, []events.Event{e.event(events.ExposureRecorded, id, key, map[string]any{
		"seconds": seconds, "total": exp.TotalSeconds,
	})})
	return exp, nil
}

// ClearExposure forgets the accumulated exposure for key.
func (e *Engine) ClearExposure(id, key string) error {
	c, err := e.GetCharacter(id)
	if err != nil {
		return err
	}
	if _, ok := c.Environment.Exposures[key]; !ok {
		return nil
	}
	next := state.Clone(c)
	delete(next.Environment.Exposures, key)
	e.commit(next, nil)
	return nil
}

// ApplyExposureAilments applies each ailment whose exposure threshold has
// been reached, unless a status of that name is still active or the
// exposure's cooldown since the last application has not elapsed. It returns
// the statuses applied.
func (e *Engine) ApplyExposureAilments(id string, defs []AilmentDef) ([]types.Status, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return nil, err
	}
	now := e.clock()
	next := state.Clone(c)
	var applied []types.Status
	var evts []events.Event

	for _, def := range defs {
		exp, ok := next.Environment.Exposures[def.ExposureKey]
		if !ok || exp.TotalSeconds < def.TriggerAtSeconds {
			continue
		}
		if state.HasActiveStatus(next, def.StatusName, now) {
			continue
		}
		if exp.LastAppliedAt != nil && now.Sub(*exp.LastAppliedAt) < toDuration(def.CooldownSeconds) {
			continue
		}

		st := e.newStatus(StatusSpec{
			Name:     def.StatusName,
			Duration: toDuration(def.DurationSeconds),
			Data:     def.Data,
		})
		next.Statuses = append(next.Statuses, st)
		at := now
		exp.LastAppliedAt = &at
		next.Environment.Exposures[def.ExposureKey] = exp
		applied = append(applied, st)
		evts = append(evts, e.event(events.AilmentApplied, id, st.Name, map[string]any{
			"exposure": def.ExposureKey, "statusId": st.ID,
		}))
	}
	if len(applied) == 0 {
		return nil, nil
	}
	e.commit(next, evts)
	return applied, nil
}

func toDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
