// Package engine provides the character-state manager: it owns the live
// character records of one ruleset and exposes every mutation entry point,
// delegating rule work to the rules package.
//
// An Engine is not safe for concurrent use. Every operation replaces the
// stored character with a new value, so a previously returned
// *types.CharacterState never changes; callers must not modify returned
// values.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nathoo/statecore/engine/dice"
	"github.com/nathoo/statecore/engine/events"
	"github.com/nathoo/statecore/engine/formula"
	"github.com/nathoo/statecore/engine/rules"
	"github.com/nathoo/statecore/engine/save"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

var (
	// ErrCharacterNotFound is wrapped by NotFoundError.
	ErrCharacterNotFound = errors.New("character not found")
	// ErrRuleNotFound is returned when a rule id is not in the ruleset.
	ErrRuleNotFound = errors.New("rule not found")
	// ErrItemNotFound is returned when an item instance is in neither the
	// inventory nor an equipment slot.
	ErrItemNotFound = errors.New("item not found")
	// ErrTimerNotFound is returned for timer operations on a rule without a
	// running timer.
	ErrTimerNotFound = errors.New("timer not found")
	// ErrNilPatch is returned by UpdateCharacter when patch is nil.
	ErrNilPatch = errors.New("nil patch function")
)

// NotFoundError reports an unknown character id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("character %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrCharacterNotFound }

// Clock returns the current time.
type Clock func() time.Time

// IDGenerator returns a new unique id.
type IDGenerator func() string

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by the engine and its evaluators.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the id source for characters, statuses and modifiers.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.newID = g }
}

// WithSeed uses a seeded, position-tracking generator for dice. Its state is
// part of snapshots.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = dice.NewRNG(seed)
		e.dice = e.rng
	}
}

// WithDice uses src for dice rolls. Snapshots do not capture its state.
func WithDice(src dice.Source) Option {
	return func(e *Engine) {
		e.rng = nil
		e.dice = src
	}
}

// WithStrict makes rule errors fail the operation instead of being recorded
// on the rule result.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithDispatcher delivers engine events to d after each operation commits.
func WithDispatcher(d *events.Dispatcher) Option {
	return func(e *Engine) { e.events = d }
}

// Engine holds the ruleset and the character store.
type Engine struct {
	ruleset    *types.Ruleset
	characters map[string]*types.CharacterState

	orch    *rules.Orchestrator
	formula *formula.Evaluator
	rng     *dice.RNG
	dice    dice.Source
	events  *events.Dispatcher

	clock  Clock
	newID  IDGenerator
	log    zerolog.Logger
	strict bool
}

// New creates an engine for the ruleset.
func New(rs *types.Ruleset, opts ...Option) *Engine {
	e := &Engine{
		characters: map[string]*types.CharacterState{},
		clock:      time.Now,
		newID:      uuid.NewString,
		log:        zerolog.Nop(),
	}
	WithSeed(time.Now().UnixNano())(e)
	for _, opt := range opts {
		opt(e)
	}
	e.formula = formula.New(e.dice, e.log)
	e.UpdateRuleset(rs)
	return e
}

// UpdateRuleset swaps the ruleset used by subsequent operations. Existing
// characters are kept as they are.
func (e *Engine) UpdateRuleset(rs *types.Ruleset) {
	if rs == nil {
		rs = &types.Ruleset{}
	}
	e.ruleset = rs
	e.orch = rules.NewOrchestrator(rs, e.formula, e.log)
	e.orch.Strict = e.strict
	e.orch.Now = e.clock
}

// Ruleset returns the current ruleset.
func (e *Engine) Ruleset() *types.Ruleset { return e.ruleset }

// Orchestrator exposes the rule orchestrator bound to the current ruleset.
func (e *Engine) Orchestrator() *rules.Orchestrator { return e.orch }

// Formula exposes the engine's formula evaluator.
func (e *Engine) Formula() *formula.Evaluator { return e.formula }

// RNG returns the seeded generator, or nil when dice come from WithDice.
func (e *Engine) RNG() *dice.RNG { return e.rng }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.clock() }

// CreateCharacter seeds a character from the ruleset, runs every enabled
// passive rule against it and stores the result. Passive rules with a timed
// or calculated duration start their timers. customStats override stat
// defaults.
func (e *Engine) CreateCharacter(name string, customStats map[string]any) (*types.CharacterState, error) {
	now := e.clock()
	c := state.New(e.ruleset, e.newID(), name, customStats, now)

	x, err := e.orch.ExecuteTrigger(types.TriggerPassive, c, nil)
	if err != nil {
		return nil, err
	}
	next, started := e.startTimers(c.ID, x)

	evts := []events.Event{e.event(events.CharacterCreated, c.ID, c.Name, nil)}
	evts = append(evts, e.ruleEvents(c.ID, x.Results)...)
	c = e.commit(next, append(evts, started...))
	e.log.Info().Str("character", c.ID).Str("name", name).Msg("character created")
	return c, nil
}

// GetCharacter returns the stored character.
func (e *Engine) GetCharacter(id string) (*types.CharacterState, error) {
	c, ok := e.characters[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return c, nil
}

// UpdateCharacter applies patch to a copy of the character, touches
// UpdatedAt and stores the copy.
func (e *Engine) UpdateCharacter(id string, patch func(c *types.CharacterState)) (*types.CharacterState, error) {
	if patch == nil {
		return nil, ErrNilPatch
	}
	c, err := e.GetCharacter(id)
	if err != nil {
		return nil, err
	}
	next := state.Clone(c)
	patch(next)
	next.ID = c.ID
	return e.commit(next, nil), nil
}

// DeleteCharacter removes a character.
func (e *Engine) DeleteCharacter(id string) error {
	if _, ok := e.characters[id]; !ok {
		return &NotFoundError{ID: id}
	}
	delete(e.characters, id)
	e.events.Dispatch([]events.Event{e.event(events.CharacterDeleted, id, "", nil)})
	return nil
}

// GetAllCharacters returns every character ordered by creation time, then id.
func (e *Engine) GetAllCharacters() []*types.CharacterState {
	out := make([]*types.CharacterState, 0, len(e.characters))
	for _, c := range e.characters {
		out = append(out, c)
	}
	save.SortCharacters(out)
	return out
}

// ClearAll removes every character.
func (e *Engine) ClearAll() {
	e.characters = map[string]*types.CharacterState{}
}

// ApplyRule evaluates one rule against a character, including any rules its
// effects chain to. Applied rules with a timed or calculated duration start
// a timer.
func (e *Engine) ApplyRule(id, ruleID string) (rules.Execution, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return rules.Execution{}, err
	}
	if _, ok := e.ruleset.Rule(ruleID); !ok {
		return rules.Execution{}, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}
	x, err := e.orch.ExecuteRules([]string{ruleID}, c)
	if err != nil {
		return x, err
	}
	return e.finishExecution(c.ID, x), nil
}

// ExecuteTrigger runs every enabled rule with the trigger type against a
// character. data is passed along but does not select rules.
func (e *Engine) ExecuteTrigger(id string, tt types.TriggerType, data map[string]any) (rules.Execution, error) {
	return e.runTrigger(id, tt, data, e.orch.ExecuteTrigger)
}

// ExecuteMatching is ExecuteTrigger limited to rules whose trigger
// parameters (action, item, spell, status) agree with data.
func (e *Engine) ExecuteMatching(id string, tt types.TriggerType, data map[string]any) (rules.Execution, error) {
	return e.runTrigger(id, tt, data, e.orch.ExecuteMatching)
}

type triggerFunc func(types.TriggerType, *types.CharacterState, map[string]any) (rules.Execution, error)

func (e *Engine) runTrigger(id string, tt types.TriggerType, data map[string]any, run triggerFunc) (rules.Execution, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return rules.Execution{}, err
	}
	x, err := run(tt, c, data)
	if err != nil {
		return x, err
	}
	return e.finishExecution(c.ID, x), nil
}

// EvalFormula evaluates a formula against a stored character.
func (e *Engine) EvalFormula(id, expr string) (formula.Result, error) {
	c, err := e.GetCharacter(id)
	if err != nil {
		return formula.Result{}, err
	}
	return e.formula.Eval(expr, c)
}

// finishExecution starts duration timers for applied rules and stores the
// final state.
func (e *Engine) finishExecution(id string, x rules.Execution, extra ...events.Event) rules.Execution {
	evts := append(e.ruleEvents(id, x.Results), extra...)
	next, started := e.startTimers(id, x)
	x.State = e.commit(next, append(evts, started...))
	return x
}

// startTimers starts a timer for every applied rule with a timed or
// calculated duration and returns the resulting state with one
// TimerStarted event per timer.
func (e *Engine) startTimers(id string, x rules.Execution) (*types.CharacterState, []events.Event) {
	var evts []events.Event
	next := x.State
	for _, res := range x.Results {
		if !res.Applied {
			continue
		}
		rule, _ := e.ruleset.Rule(res.RuleID)
		var started bool
		next, started = e.startTimer(next, rule)
		if started {
			evts = append(evts, e.event(events.TimerStarted, id, rule.ID, map[string]any{
				"seconds": next.Timers[rule.ID].Duration,
			}))
		}
	}
	return next, evts
}

// startTimer returns a copy of s with a fresh timer for a rule whose
// duration is timed or calculated. Other durations start nothing.
func (e *Engine) startTimer(s *types.CharacterState, rule types.Rule) (*types.CharacterState, bool) {
	if rule.Duration == nil {
		return s, false
	}
	var seconds float64
	switch rule.Duration.Type {
	case types.DurationTimed:
		seconds = rule.Duration.Seconds
	case types.DurationCalculated:
		seconds = e.formula.Evaluate(rule.Duration.Formula, s)
	default:
		return s, false
	}
	if seconds <= 0 {
		return s, false
	}
	next := *s
	next.Timers = make(map[string]types.Timer, len(s.Timers)+1)
	for k, t := range s.Timers {
		next.Timers[k] = t
	}
	next.Timers[rule.ID] = types.Timer{
		RuleID:    rule.ID,
		StartedAt: e.clock(),
		Duration:  seconds,
		Remaining: seconds,
	}
	return &next, true
}

// commit stores a copy of c with a fresh UpdatedAt, dispatches evts and
// returns the stored value.
func (e *Engine) commit(c *types.CharacterState, evts []events.Event) *types.CharacterState {
	next := *c
	next.UpdatedAt = e.clock()
	e.characters[next.ID] = &next
	e.events.Dispatch(evts)
	return &next
}

func (e *Engine) event(t events.Type, characterID, subject string, data map[string]any) events.Event {
	return events.Event{Type: t, CharacterID: characterID, Subject: subject, Data: data, At: e.clock()}
}

func (e *Engine) ruleEvents(id string, results []rules.Result) []events.Event {
	var out []events.Event
	for _, res := range results {
		switch {
		case res.Applied:
			data := map[string]any{}
			if res.FormulaValue != nil {
				data["formula"] = *res.FormulaValue
			}
			if res.Chained {
				data["chained"] = true
			}
			out = append(out, e.event(events.RuleApplied, id, res.RuleID, data))
		case res.Error != "":
			out = append(out, e.event(events.RuleFailed, id, res.RuleID, map[string]any{"error": res.Error}))
		}
	}
	return out
}
