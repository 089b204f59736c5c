package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/nathoo/statecore/engine/effects"
	"github.com/nathoo/statecore/engine/formula"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// FormulaKeyPrefix prefixes the custom key holding a rule's formula result.
const FormulaKeyPrefix = "formula_"

// FormulaKey returns the custom key for a rule's formula result.
func FormulaKey(ruleID string) string {
	return FormulaKeyPrefix + ruleID
}

// Result describes one rule evaluation.
type Result struct {
	RuleID         string   `json:"ruleId"`
	Applied        bool     `json:"applied"`
	ConditionsMet  bool     `json:"conditionsMet"`
	FormulaValue   *float64 `json:"formulaValue,omitempty"`
	TriggeredRules []string `json:"triggeredRules,omitempty"`
	Chained        bool     `json:"chained,omitempty"`
	Error          string   `json:"error,omitempty"`

	// State is the state after the rule; the input state when not applied.
	State *types.CharacterState `json:"-"`
}

// Execution is the outcome of a batch of rules.
type Execution struct {
	State   *types.CharacterState `json:"-"`
	Results []Result              `json:"results"`
}

// Applied returns the ids of rules that applied, in execution order.
func (x Execution) Applied() []string {
	var ids []string
	for _, r := range x.Results {
		if r.Applied {
			ids = append(ids, r.RuleID)
		}
	}
	return ids
}

// Context describes the event that started a trigger execution. It travels
// with the execution for logging; conditions and effects do not read it.
type Context struct {
	Trigger   types.TriggerType `json:"trigger"`
	Data      map[string]any    `json:"triggerData,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// RuleError wraps an error raised while evaluating a rule.
type RuleError struct {
	RuleID string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// Orchestrator evaluates rules of one ruleset. It holds no per-call state.
type Orchestrator struct {
	Ruleset *types.Ruleset
	Effects *effects.Applicator
	Formula *formula.Evaluator
	// Strict propagates rule errors to the caller instead of recording them
	// on the rule's result.
	Strict bool
	Log    zerolog.Logger
	Now    func() time.Time
}

// NewOrchestrator creates a lenient orchestrator sharing f between effect
// resolution and rule formulas.
func NewOrchestrator(rs *types.Ruleset, f *formula.Evaluator, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Ruleset: rs,
		Effects: effects.New(f, log),
		Formula: f,
		Log:     log,
		Now:     time.Now,
	}
}

// EvaluateRule evaluates one rule against s. A disabled rule is not applied
// and its conditions are not evaluated. The returned error is non-nil only
// in strict mode.
func (o *Orchestrator) EvaluateRule(rule types.Rule, s *types.CharacterState) (Result, error) {
	res := Result{RuleID: rule.ID, State: s}
	if !rule.Enabled {
		return res, nil
	}
	if !Evaluate(rule.Conditions, s) {
		return res, nil
	}
	res.ConditionsMet = true

	next, err := o.Effects.ApplyAll(rule.Effects, s)
	if err == nil && rule.Formula != "" {
		v := o.Formula.Evaluate(rule.Formula, next)
		res.FormulaValue = &v
		next, err = state.Set(next, "custom."+FormulaKey(rule.ID), v)
	}
	if err != nil {
		rerr := &RuleError{RuleID: rule.ID, Err: err}
		if o.Strict {
			return res, rerr
		}
		o.Log.Warn().Str("rule", rule.ID).Err(err).Msg("rule failed")
		res.Error = err.Error()
		return res, nil
	}

	for _, eff := range rule.Effects {
		if eff.TriggersRule != "" {
			res.TriggeredRules = append(res.TriggeredRules, eff.TriggersRule)
		}
	}
	res.Applied = true
	res.State = next
	o.Log.Debug().Str("rule", rule.ID).Int("effects", len(rule.Effects)).Msg("rule applied")
	return res, nil
}

// ExecuteRules runs the named rules in descending priority order, threading
// state from one rule to the next. Unknown ids are dropped. Rules nominated
// by fired effects run afterwards as one further batch; that batch does not
// chain again.
func (o *Orchestrator) ExecuteRules(ids []string, s *types.CharacterState) (Execution, error) {
	return o.executeRules(ids, s, true)
}

func (o *Orchestrator) executeRules(ids []string, s *types.CharacterState, chain bool) (Execution, error) {
	batch := o.lookup(ids)
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Priority > batch[j].Priority
	})

	x := Execution{State: s}
	var triggered []string
	seen := map[string]bool{}
	for _, rule := range batch {
		res, err := o.EvaluateRule(rule, x.State)
		if err != nil {
			return x, err
		}
		res.Chained = !chain
		x.State = res.State
		x.Results = append(x.Results, res)
		for _, id := range res.TriggeredRules {
			if !seen[id] {
				seen[id] = true
				triggered = append(triggered, id)
			}
		}
	}

	if chain && len(triggered) > 0 {
		o.Log.Debug().Strs("rules", triggered).Msg("chaining triggered rules")
		sub, err := o.executeRules(triggered, x.State, false)
		x.State = sub.State
		x.Results = append(x.Results, sub.Results...)
		if err != nil {
			return x, err
		}
	}
	return x, nil
}

// lookup resolves ids to rules in the given order, dropping unknown ids.
func (o *Orchestrator) lookup(ids []string) []types.Rule {
	if o.Ruleset == nil {
		return nil
	}
	out := make([]types.Rule, 0, len(ids))
	for _, id := range ids {
		if r, ok := o.Ruleset.Rule(id); ok {
			out = append(out, r)
		}
	}
	return out
}

// FindRulesByTrigger returns enabled rules with the given trigger type, in
// ruleset order.
func (o *Orchestrator) FindRulesByTrigger(tt types.TriggerType) []types.Rule {
	if o.Ruleset == nil {
		return nil
	}
	var out []types.Rule
	for _, r := range o.Ruleset.Rules {
		if r.Enabled && r.Trigger != nil && r.Trigger.Type == tt {
			out = append(out, r)
		}
	}
	return out
}

// FindRulesMatching is FindRulesByTrigger narrowed by the trigger
// parameters in data (see MatchesTrigger).
func (o *Orchestrator) FindRulesMatching(tt types.TriggerType, data map[string]any) []types.Rule {
	var out []types.Rule
	for _, r := range o.FindRulesByTrigger(tt) {
		if MatchesTrigger(r, tt, data) {
			out = append(out, r)
		}
	}
	return out
}

// ExecuteTrigger runs every enabled rule with the trigger type. data travels
// in the execution Context only; it does not select rules.
func (o *Orchestrator) ExecuteTrigger(tt types.TriggerType, s *types.CharacterState, data map[string]any) (Execution, error) {
	return o.execute(Context{Trigger: tt, Data: data, Timestamp: o.now()}, o.FindRulesByTrigger(tt), s)
}

// ExecuteMatching is ExecuteTrigger restricted to the rules whose action,
// item, spell or status parameter agrees with data.
func (o *Orchestrator) ExecuteMatching(tt types.TriggerType, s *types.CharacterState, data map[string]any) (Execution, error) {
	return o.execute(Context{Trigger: tt, Data: data, Timestamp: o.now()}, o.FindRulesMatching(tt, data), s)
}

func (o *Orchestrator) execute(ctx Context, matched []types.Rule, s *types.CharacterState) (Execution, error) {
	ids := make([]string, len(matched))
	for i, r := range matched {
		ids[i] = r.ID
	}
	o.Log.Debug().
		Str("trigger", string(ctx.Trigger)).
		Time("at", ctx.Timestamp).
		Int("rules", len(ids)).
		Msg("executing trigger")
	return o.ExecuteRules(ids, s)
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// RuleValidation is the outcome of ValidateRule.
type RuleValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateRule checks the rule's formula and every formula-like literal
// effect value for syntax errors.
func ValidateRule(rule types.Rule) RuleValidation {
	var errs []string
	if rule.Formula != "" {
		if v := formula.Validate(rule.Formula); !v.Valid {
			errs = append(errs, fmt.Sprintf("formula: %s", v.Error))
		}
	}
	for i, eff := range rule.Effects {
		str, ok := eff.Value.(string)
		if !ok || !formula.HasFormulaShape(str) {
			continue
		}
		if v := formula.Validate(str); !v.Valid {
			errs = append(errs, fmt.Sprintf("effect %d (%s): %s", i, eff.Target, v.Error))
		}
	}
	return RuleValidation{Valid: len(errs) == 0, Errors: errs}
}
