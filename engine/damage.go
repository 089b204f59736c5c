package engine

import (
	"errors"
	"fmt"

	"github.com/nathoo/statecore/engine/events"
	"github.com/nathoo/statecore/engine/formula"
	"github.com/nathoo/statecore/engine/rules"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// IncomingDamageKey is the custom field holding the damage being calculated
// while on_damage_calculation rules run. Rules read and rewrite it as
// custom.incoming_damage.
const IncomingDamageKey = "incoming_damage"

// DefaultDamageResource is the resource damage is taken from.
const DefaultDamageResource = "health"

// DamageRequest describes one hit.
type DamageRequest struct {
	Amount   string  // number, formula or dice expression, e.g. "1d6+strength"
	Resource string  // DefaultDamageResource when empty
	Defense  float64 // subtracted after damage rules ran
	Minimum  float64 // floor for the final damage
	Source   string  // passed to rules as trigger data "source"
}

// DamageResult reports how a hit was calculated and applied.
type DamageResult struct {
	Rolled    float64
	Rolls     []formula.Roll
	Final     float64
	Before    float64
	After     float64
	Execution rules.Execution
	State     *types.CharacterState
}

// ApplyDamage rolls the request's amount, lets on_damage_calculation rules
// adjust it, subtracts defense, floors the result at Minimum and takes it
// from the resource. The resource never drops below zero.
func (e *Engine) ApplyDamage(id string, req DamageRequest) (DamageResult, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return DamageResult{}, err
	}
	if req.Amount == "" {
		return DamageResult{}, errors.New("damage needs an amount")
	}
	resource := req.Resource
	if resource == "" {
		resource = DefaultDamageResource
	}
	if _, ok := c.Resources.Current[resource]; !ok {
		return DamageResult{}, fmt.Errorf("character %s has no resource %q", id, resource)
	}

	roll, err := e.formula.Eval(req.Amount, c)
	if err != nil {
		return DamageResult{}, fmt.Errorf("rolling damage: %w", err)
	}
	res := DamageResult{Rolled: roll.Value, Rolls: roll.Rolls}

	next := state.Clone(c)
	next.Custom[IncomingDamageKey] = roll.Value
	x, err := e.orch.ExecuteTrigger(types.TriggerOnDamageCalculation, next, map[string]any{
		"source":   req.Source,
		"amount":   roll.Value,
		"resource": resource,
	})
	if err != nil {
		return DamageResult{}, err
	}

	s := state.Clone(x.State)
	dmg, ok := state.ToFloat(s.Custom[IncomingDamageKey])
	if !ok {
		dmg = roll.Value
	}
	delete(s.Custom, IncomingDamageKey)
	dmg -= req.Defense
	if dmg < req.Minimum {
		dmg = req.Minimum
	}
	if dmg < 0 {
		dmg = 0
	}

	res.Final = dmg
	res.Before = s.Resources.Current[resource]
	res.After = res.Before - dmg
	if res.After < 0 {
		res.After = 0
	}
	s.Resources.Current[resource] = res.After

	x.State = s
	x = e.finishExecution(id, x, e.event(events.DamageTaken, id, resource, map[string]any{
		"rolled": res.Rolled, "damage": dmg, "source": req.Source,
	}))
	res.Execution = x
	res.State = x.State
	e.log.Debug().
		Str("character", id).
		Str("amount", req.Amount).
		Float64("rolled", res.Rolled).
		Float64("damage", dmg).
		Msg("damage applied")
	return res, nil
}
