// Package types defines the shared data structures for the statecore engine.
// Logic lives in the engine packages; the few methods here are pure helpers
// over the data itself.
package types

import "time"

// ValueType is the declared type of a stat.
type ValueType string

const (
	ValueNumber  ValueType = "number"
	ValueBoolean ValueType = "boolean"
	ValueText    ValueType = "text"
)

// StatDef defines a stat in a world's vocabulary.
type StatDef struct {
	ID      string    `json:"id" yaml:"id"`
	Name    string    `json:"name" yaml:"name"`
	Type    ValueType `json:"type" yaml:"type"`
	Default any       `json:"defaultValue" yaml:"default"`
	Min     *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64  `json:"max,omitempty" yaml:"max,omitempty"`
}

// Regeneration is a resource regeneration policy: Rate units every Interval seconds.
type Regeneration struct {
	Enabled  bool    `json:"enabled" yaml:"enabled"`
	Rate     float64 `json:"rate" yaml:"rate"`
	Interval float64 `json:"interval" yaml:"interval"`
}

// ResourceDef is a stat definition with an optional regeneration policy.
type ResourceDef struct {
	StatDef `yaml:",inline"`
	Regen   *Regeneration `json:"regeneration,omitempty" yaml:"regeneration,omitempty"`
}

// Ruleset is the authoring-time definition of a world's stats, resources and rules.
type Ruleset struct {
	ID        string        `json:"id" yaml:"id"`
	Name      string        `json:"name" yaml:"name"`
	Version   string        `json:"version,omitempty" yaml:"version,omitempty"`
	Stats     []StatDef     `json:"stats" yaml:"stats"`
	Resources []ResourceDef `json:"resources" yaml:"resources"`
	Rules     []Rule        `json:"rules" yaml:"rules"`
}

// Rule returns the rule with the given id.
func (rs *Ruleset) Rule(id string) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// TriggerType classifies the event that makes a rule eligible to run.
type TriggerType string

const (
	TriggerOnAction            TriggerType = "on_action"
	TriggerOnConsumeItem       TriggerType = "on_consume_item"
	TriggerOnEquipItem         TriggerType = "on_equip_item"
	TriggerOnDamageCalculation TriggerType = "on_damage_calculation"
	TriggerOnCastSpell         TriggerType = "on_cast_spell"
	TriggerTimeElapsed         TriggerType = "time_elapsed"
	TriggerStatusActive        TriggerType = "status_active"
	TriggerPassive             TriggerType = "passive"
	TriggerManual              TriggerType = "manual"
)

// Trigger carries the trigger type and its trigger-specific parameters.
type Trigger struct {
	Type     TriggerType    `json:"type" yaml:"type"`
	Action   string         `json:"action,omitempty" yaml:"action,omitempty"`
	ItemID   string         `json:"itemId,omitempty" yaml:"item_id,omitempty"`
	Spell    string         `json:"spell,omitempty" yaml:"spell,omitempty"`
	Interval float64        `json:"interval,omitempty" yaml:"interval,omitempty"` // seconds
	Status   string         `json:"statusName,omitempty" yaml:"status,omitempty"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Group operators for condition trees.
const (
	LogicAll  = "ALL"
	LogicAny  = "ANY"
	LogicNone = "NONE"
)

// Condition is either a leaf predicate (Field, Operator, Value) or, when
// Conditions is non-empty, a group folding its children with Operator
// (ALL, ANY or NONE).
type Condition struct {
	Field      string      `json:"field,omitempty" yaml:"field,omitempty"`
	Operator   string      `json:"operator" yaml:"operator"`
	Value      any         `json:"value,omitempty" yaml:"value,omitempty"`
	Negate     bool        `json:"negate,omitempty" yaml:"negate,omitempty"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// IsGroup reports whether the condition is a boolean group node.
func (c Condition) IsGroup() bool {
	if len(c.Conditions) > 0 {
		return true
	}
	if c.Field != "" {
		return false
	}
	switch c.Operator {
	case LogicAll, LogicAny, LogicNone:
		return true
	}
	return false
}

// EffectOp is an effect operation.
type EffectOp string

const (
	OpSet      EffectOp = "set"
	OpAdd      EffectOp = "add"
	OpSubtract EffectOp = "subtract"
	OpMultiply EffectOp = "multiply"
	OpDivide   EffectOp = "divide"
	OpAppend   EffectOp = "append"
	OpRemove   EffectOp = "remove"
)

// Effect is a single state mutation instruction.
type Effect struct {
	Target       string   `json:"target" yaml:"target"`
	Operation    EffectOp `json:"operation" yaml:"operation"`
	Value        any      `json:"value" yaml:"value"`
	Min          *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	TriggersRule string   `json:"triggersRule,omitempty" yaml:"triggers_rule,omitempty"`
}

// DurationType classifies how long a rule's effect lasts.
type DurationType string

const (
	DurationTimed          DurationType = "timed"
	DurationCalculated     DurationType = "calculated"
	DurationPermanent      DurationType = "permanent"
	DurationUntilCondition DurationType = "until_condition"
)

// RuleDuration describes the lifetime of a rule application.
type RuleDuration struct {
	Type    DurationType `json:"type" yaml:"type"`
	Seconds float64      `json:"value,omitempty" yaml:"seconds,omitempty"`
	Formula string       `json:"formula,omitempty" yaml:"formula,omitempty"`
	Until   *Condition   `json:"condition,omitempty" yaml:"until,omitempty"`
}

// RuleDependencies is ordering metadata carried by a rule. The engine does
// not enforce it.
type RuleDependencies struct {
	AppliesAfter   []string `json:"appliesAfter,omitempty" yaml:"applies_after,omitempty"`
	RequiresActive []string `json:"requiresActive,omitempty" yaml:"requires_active,omitempty"`
	ConflictsWith  []string `json:"conflictsWith,omitempty" yaml:"conflicts_with,omitempty"`
}

// RuleMetadata is descriptive authoring data.
type RuleMetadata struct {
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Author       string            `json:"author,omitempty" yaml:"author,omitempty"`
	Version      string            `json:"version,omitempty" yaml:"version,omitempty"`
	Dependencies *RuleDependencies `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Rule is a named, priority-ordered, conditionally-triggered bundle of effects.
type Rule struct {
	ID         string        `json:"id" yaml:"id"`
	Name       string        `json:"name" yaml:"name"`
	Category   string        `json:"category,omitempty" yaml:"category,omitempty"`
	Enabled    bool          `json:"enabled" yaml:"enabled"`
	Priority   int           `json:"priority" yaml:"priority"`
	Tags       []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Trigger    *Trigger      `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Conditions *Condition    `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Effects    []Effect      `json:"effects" yaml:"effects"`
	Formula    string        `json:"formula,omitempty" yaml:"formula,omitempty"`
	Duration   *RuleDuration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Metadata   RuleMetadata  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Resources holds current and maximum values keyed by resource id.
type Resources struct {
	Current map[string]float64 `json:"current"`
	Max     map[string]float64 `json:"max"`
}

// ItemInstance is one concrete item carried or equipped by a character.
type ItemInstance struct {
	ID                string         `json:"id"`
	ItemID            string         `json:"itemId"`
	Name              string         `json:"name"`
	Quantity          int            `json:"quantity"`
	Durability        *float64       `json:"durability,omitempty"` // nil: item does not wear
	MaxDurability     float64        `json:"maxDurability,omitempty"`
	UsageCount        int            `json:"usageCount"`
	BreakCount        int            `json:"breakCount"`
	LegacyTier        int            `json:"legacyTier"`
	LegacyName        string         `json:"legacyName,omitempty"`
	YieldBonusPercent float64        `json:"yieldBonusPercent"`
	Properties        map[string]any `json:"properties,omitempty"`
}

// DisplayName returns the legacy name when one was earned.
func (it ItemInstance) DisplayName() string {
	if it.LegacyName != "" {
		return it.LegacyName
	}
	return it.Name
}

// Inventory is a capacity-bounded item list.
type Inventory struct {
	Capacity int            `json:"capacity"`
	Items    []ItemInstance `json:"items"`
}

// Status is an active status application.
type Status struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	SourceRuleID string         `json:"sourceRuleId,omitempty"`
	AppliedAt    time.Time      `json:"appliedAt"`
	ExpiresAt    *time.Time     `json:"expiresAt,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// ModifierOp is a standing stat adjustment operation.
type ModifierOp string

const (
	ModAdd      ModifierOp = "add"
	ModMultiply ModifierOp = "multiply"
	ModSet      ModifierOp = "set"
)

// Modifier is a standing stat adjustment attributed to a source rule.
type Modifier struct {
	ID           string     `json:"id"`
	Stat         string     `json:"stat"`
	Operation    ModifierOp `json:"operation"`
	Value        float64    `json:"value"`
	SourceRuleID string     `json:"sourceRuleId,omitempty"`
	Priority     int        `json:"priority"`
}

// Timer is a per-rule countdown.
type Timer struct {
	RuleID    string    `json:"ruleId"`
	StartedAt time.Time `json:"startedAt"`
	Duration  float64   `json:"duration"`  // seconds
	Remaining float64   `json:"remaining"` // seconds
	Paused    bool      `json:"paused"`
}

// Exposure accumulates contact with one environmental hazard.
type Exposure struct {
	TotalSeconds  float64    `json:"totalSeconds"`
	LastUpdated   time.Time  `json:"lastUpdated"`
	LastAppliedAt *time.Time `json:"lastAppliedAt,omitempty"`
}

// Environment holds environmental-conditioning state.
type Environment struct {
	Exposures map[string]Exposure `json:"exposures"`
}

// CharacterState is the simulation unit. Values are replaced, never mutated
// in place, once they have been handed out by the engine.
type CharacterState struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	RulesetID   string                   `json:"rulesetId"`
	Stats       map[string]any           `json:"stats"`
	Resources   Resources                `json:"resources"`
	Inventory   Inventory                `json:"inventory"`
	Equipment   map[string]*ItemInstance `json:"equipment"`
	Statuses    []Status                 `json:"statuses"`
	Modifiers   []Modifier               `json:"modifiers"`
	Timers      map[string]Timer         `json:"timers"`
	Environment Environment              `json:"environment"`
	Progression map[string]float64       `json:"progression"`
	Custom      map[string]any           `json:"custom"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}
