package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nathoo/statecore/engine"
	"github.com/nathoo/statecore/engine/catalog"
	"github.com/nathoo/statecore/engine/events"
	"github.com/nathoo/statecore/engine/parser"
	"github.com/nathoo/statecore/engine/resolve"
	"github.com/nathoo/statecore/engine/rules"
	"github.com/nathoo/statecore/engine/save"
	"github.com/nathoo/statecore/types"
)

// Result is the output of one console line.
type Result struct {
	Output []string
	Events []events.Event
	System bool // meta-command output
	Quit   bool
}

// Session executes console commands against an engine and persists the
// characters each command touched. Both the plain console and the TUI
// drive a Session.
type Session struct {
	Engine      *engine.Engine
	Store       save.Store
	Ailments    []engine.AilmentDef
	Durability  engine.DurabilityOptions
	TickSeconds float64
	SaveDir     string
	Trace       bool
	Log         zerolog.Logger

	recorder events.Recorder
	current  string
	lastCmd  string
}

// NewSession creates a session. Events dispatched through d are collected
// into each Result; d must be the dispatcher the engine was built with.
func NewSession(eng *engine.Engine, store save.Store, d *events.Dispatcher) *Session {
	home, _ := os.UserHomeDir()
	s := &Session{
		Engine:      eng,
		Store:       store,
		TickSeconds: engine.DefaultTickSeconds,
		SaveDir:     filepath.Join(home, ".statecore", "saves"),
		Log:         zerolog.Nop(),
	}
	if d != nil {
		d.OnAny(s.recorder.Record)
	}
	return s
}

// LoadCharacters replaces the engine's characters with the store's.
func (s *Session) LoadCharacters(ctx context.Context) (int, error) {
	if s.Store == nil {
		return 0, nil
	}
	chars, err := s.Store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing stored characters: %w", err)
	}
	snap := &save.Snapshot{RulesetID: s.Engine.Ruleset().ID, Characters: chars}
	if rng := s.Engine.RNG(); rng != nil {
		snap.RNGSeed, snap.RNGPosition = rng.Seed(), rng.Position()
	}
	if err := s.Engine.Restore(snap); err != nil {
		return 0, err
	}
	return len(chars), nil
}

// Current returns the character most recently referenced by a command.
func (s *Session) Current() (*types.CharacterState, bool) {
	if s.current == "" {
		return nil, false
	}
	c, err := s.Engine.GetCharacter(s.current)
	if err != nil {
		return nil, false
	}
	return c, true
}

// Exec runs one console line.
func (s *Session) Exec(ctx context.Context, input string) Result {
	input = strings.TrimSpace(input)
	if input == "" {
		return Result{}
	}

	// "again" / "g" repeats the last command.
	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		if s.lastCmd == "" {
			return Result{Output: []string{"Nothing to repeat."}, System: true}
		}
		input = s.lastCmd
	} else if !strings.HasPrefix(input, "/") {
		s.lastCmd = input
	}

	s.recorder.Reset()
	cmd := parser.Parse(input)

	var res Result
	if strings.HasPrefix(cmd.Verb, "/") {
		res = s.meta(ctx, cmd)
		res.System = true
	} else {
		lines, err := s.command(ctx, cmd)
		if err != nil {
			lines = append(lines, "Error: "+err.Error())
		}
		res.Output = lines
	}

	res.Events = append([]events.Event(nil), s.recorder.Events...)
	if s.Trace {
		res.Output = append(res.Output, FormatTrace(res.Events)...)
	}
	return res
}

// FormatTrace renders events as trace lines.
func FormatTrace(evts []events.Event) []string {
	if len(evts) == 0 {
		return nil
	}
	lines := []string{fmt.Sprintf("[trace] Events: %d", len(evts))}
	for _, ev := range evts {
		line := fmt.Sprintf("[trace]   %s", ev.Type)
		if ev.Subject != "" {
			line += " " + ev.Subject
		}
		if len(ev.Data) > 0 {
			line += " " + formatData(ev.Data)
		}
		lines = append(lines, line)
	}
	return lines
}

func (s *Session) meta(ctx context.Context, cmd parser.Command) Result {
	switch cmd.Verb {
	case "/quit", "/exit":
		return Result{Output: []string{"Goodbye."}, Quit: true}

	case "/save":
		return Result{Output: []string{s.saveSnapshot(cmd.Arg(0))}}

	case "/load":
		return Result{Output: []string{s.loadSnapshot(ctx, cmd.Arg(0))}}

	case "/help":
		return Result{Output: helpLines()}

	case "/trace":
		s.Trace = !s.Trace
		if s.Trace {
			return Result{Output: []string{"Trace output enabled."}}
		}
		return Result{Output: []string{"Trace output disabled."}}

	default:
		return Result{Output: []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd.Verb)}}
	}
}

func (s *Session) saveSnapshot(name string) string {
	if name == "" {
		name = "quicksave"
	}
	if err := os.MkdirAll(s.SaveDir, 0o755); err != nil {
		return fmt.Sprintf("Save failed: %v", err)
	}
	snap := s.Engine.Snapshot()
	if err := save.WriteFile(filepath.Join(s.SaveDir, name+".json"), snap); err != nil {
		return fmt.Sprintf("Save failed: %v", err)
	}
	return fmt.Sprintf("Saved %d character(s) to %s.", len(snap.Characters), name)
}

func (s *Session) loadSnapshot(ctx context.Context, name string) string {
	if name == "" {
		name = "quicksave"
	}
	snap, err := save.ReadFile(filepath.Join(s.SaveDir, name+".json"))
	if err != nil {
		return fmt.Sprintf("Load failed: %v", err)
	}
	if err := s.Engine.Restore(snap); err != nil {
		return fmt.Sprintf("Load failed: %v", err)
	}
	if err := s.replaceStored(ctx); err != nil {
		return fmt.Sprintf("Loaded %s but could not persist: %v", name, err)
	}
	return fmt.Sprintf("Loaded %d character(s) from %s.", len(snap.Characters), name)
}

// replaceStored makes the store hold exactly the engine's characters.
func (s *Session) replaceStored(ctx context.Context) error {
	if s.Store == nil {
		return nil
	}
	stored, err := s.Store.List(ctx)
	if err != nil {
		return err
	}
	live := map[string]bool{}
	for _, c := range s.Engine.GetAllCharacters() {
		live[c.ID] = true
		if err := s.Store.Save(ctx, c); err != nil {
			return err
		}
	}
	for _, c := range stored {
		if !live[c.ID] {
			if err := s.Store.Delete(ctx, c.ID); err != nil && !errors.Is(err, save.ErrNotFound) {
				return err
			}
		}
	}
	return nil
}

// persist saves the character after a successful mutation.
func (s *Session) persist(ctx context.Context, c *types.CharacterState) error {
	if s.Store == nil || c == nil {
		return nil
	}
	if err := s.Store.Save(ctx, c); err != nil {
		return fmt.Errorf("persisting %s: %w", c.ID, err)
	}
	return nil
}

// character resolves a reference and remembers it as current.
func (s *Session) character(ref string) (*types.CharacterState, error) {
	c, err := resolve.Character(s.Engine.GetAllCharacters(), ref)
	if err != nil {
		return nil, err
	}
	s.current = c.ID
	return c, nil
}

// Verbs lists the console's command verbs, meta commands included.
func Verbs() []string {
	return []string{
		"advance", "again", "apply", "create", "damage", "delete", "eval", "explain",
		"expose", "give", "help", "list", "modifier", "roll", "rules", "show",
		"status", "timer", "trigger", "use",
		"/help", "/load", "/quit", "/save", "/trace",
	}
}

func (s *Session) command(ctx context.Context, cmd parser.Command) ([]string, error) {
	switch cmd.Verb {
	case "help":
		return helpLines(), nil
	case "create":
		return s.cmdCreate(ctx, cmd)
	case "list":
		return s.cmdList(), nil
	case "show":
		c, err := s.character(cmd.Arg(0))
		if err != nil {
			return nil, err
		}
		return s.sheet(c), nil
	case "delete":
		return s.cmdDelete(ctx, cmd)
	case "apply":
		return s.cmdApply(ctx, cmd)
	case "trigger":
		return s.cmdTrigger(ctx, cmd)
	case "rules":
		return s.cmdRules(cmd)
	case "explain":
		return s.cmdExplain(cmd)
	case "advance":
		return s.cmdAdvance(ctx, cmd)
	case "timer":
		return s.cmdTimer(ctx, cmd)
	case "status":
		return s.cmdStatus(ctx, cmd)
	case "modifier":
		return s.cmdModifier(ctx, cmd)
	case "expose":
		return s.cmdExpose(ctx, cmd)
	case "give":
		return s.cmdGive(ctx, cmd)
	case "use":
		return s.cmdUse(ctx, cmd)
	case "damage":
		return s.cmdDamage(ctx, cmd)
	case "eval":
		return s.cmdEval(cmd)
	case "roll":
		return s.cmdRoll(cmd)
	default:
		return nil, fmt.Errorf("unknown command %q, type help for a list", cmd.Verb)
	}
}

func (s *Session) cmdCreate(ctx context.Context, cmd parser.Command) ([]string, error) {
	name := cmd.Arg(0)
	if name == "" {
		return nil, errors.New("usage: create <name> [stat=value ...]")
	}
	custom := map[string]any{}
	for k, v := range cmd.Params(1) {
		custom[k] = parseValue(v)
	}
	c, err := s.Engine.CreateCharacter(name, custom)
	if err != nil {
		return nil, err
	}
	s.current = c.ID
	if err := s.persist(ctx, c); err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("Created %s [%s].", c.Name, c.ID)}, nil
}

func (s *Session) cmdList() []string {
	chars := s.Engine.GetAllCharacters()
	if len(chars) == 0 {
		return []string{"No characters."}
	}
	lines := make([]string, 0, len(chars))
	for _, c := range chars {
		lines = append(lines, fmt.Sprintf("%s  %s  %s", c.ID, c.Name, ResourceSummary(c)))
	}
	return lines
}

func (s *Session) cmdDelete(ctx context.Context, cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	if err := s.Engine.DeleteCharacter(c.ID); err != nil {
		return nil, err
	}
	s.current = ""
	if s.Store != nil {
		if err := s.Store.Delete(ctx, c.ID); err != nil && !errors.Is(err, save.ErrNotFound) {
			return nil, err
		}
	}
	return []string{fmt.Sprintf("Deleted %s.", c.Name)}, nil
}

func (s *Session) cmdApply(ctx context.Context, cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	if cmd.Arg(1) == "" {
		return nil, errors.New("usage: apply <character> <rule>")
	}
	x, err := s.Engine.ApplyRule(c.ID, cmd.Arg(1))
	if err != nil {
		return nil, err
	}
	return s.executionLines(ctx, x)
}

func (s *Session) cmdTrigger(ctx context.Context, cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	tt := types.TriggerType(cmd.Arg(1))
	if tt == "" {
		return nil, errors.New("usage: trigger <character> <type> [key=value ...]")
	}
	data := map[string]any{}
	for k, v := range cmd.Params(2) {
		data[k] = parseValue(v)
	}
	x, err := s.Engine.ExecuteMatching(c.ID, tt, data)
	if err != nil {
		return nil, err
	}
	return s.executionLines(ctx, x)
}

func (s *Session) cmdRules(cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	avail := catalog.Available(s.Engine.Ruleset(), c, types.TriggerType(cmd.Arg(1)))
	if len(avail) == 0 {
		return []string{fmt.Sprintf("No rules are available to %s.", c.Name)}, nil
	}
	lines := make([]string, 0, len(avail))
	for _, e := range avail {
		line := fmt.Sprintf("%s (%s)", e.ID, triggerName(e.Trigger))
		if e.Description != "" {
			line += " " + e.Description
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Session) cmdExplain(cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	e, ok := catalog.Describe(s.Engine.Ruleset(), c, cmd.Arg(1))
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrRuleNotFound, cmd.Arg(1))
	}
	lines := []string{fmt.Sprintf("%s [%s] priority %d, trigger %s", e.Name, e.ID, e.Priority, triggerName(e.Trigger))}
	if e.Description != "" {
		lines = append(lines, e.Description)
	}
	if e.Ready {
		lines = append(lines, fmt.Sprintf("Conditions hold for %s.", c.Name))
	} else {
		lines = append(lines, fmt.Sprintf("Conditions do not hold for %s.", c.Name))
	}
	for _, ef := range e.Effects {
		lines = append(lines, fmt.Sprintf("  %s %s %s", ef.Operation, ef.Target, formatValue(ef.Value)))
	}
	return lines, nil
}

func triggerName(tt types.TriggerType) string {
	if tt == "" {
		return "no trigger"
	}
	return string(tt)
}

func (s *Session) executionLines(ctx context.Context, x rules.Execution) ([]string, error) {
	var lines []string
	for _, r := range x.Results {
		switch {
		case r.Error != "":
			lines = append(lines, fmt.Sprintf("%s failed: %s", r.RuleID, r.Error))
		case r.Applied:
			line := fmt.Sprintf("%s applied", r.RuleID)
			if r.FormulaValue != nil {
				line += " (formula " + formatNumber(*r.FormulaValue) + ")"
			}
			if r.Chained {
				line += " [chained]"
			}
			lines = append(lines, line)
		case !r.ConditionsMet:
			lines = append(lines, fmt.Sprintf("%s skipped: conditions not met", r.RuleID))
		default:
			lines = append(lines, fmt.Sprintf("%s skipped", r.RuleID))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "No rules matched.")
	}
	if x.State != nil {
		lines = append(lines, ResourceSummary(x.State))
	}
	return lines, s.persist(ctx, x.State)
}

func (s *Session) cmdAdvance(ctx context.Context, cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	amount, err := strconv.ParseFloat(cmd.Arg(1), 64)
	if err != nil {
		return nil, errors.New("usage: advance <character> <amount> [seconds|ticks]")
	}
	opts := engine.AdvanceOptions{Mode: engine.ModeSeconds, TickSeconds: s.TickSeconds}
	switch strings.ToLower(cmd.Arg(2)) {
	case "", "s", "sec", "seconds":
	case "t", "tick", "ticks":
		opts.Mode = engine.ModeTicks
	default:
		return nil, fmt.Errorf("unknown time unit %q", cmd.Arg(2))
	}
	tick, err := s.Engine.AdvanceTime(c.ID, amount, opts)
	if err != nil {
		return nil, err
	}

	lines := []string{fmt.Sprintf("%s seconds pass.", formatNumber(tick.Seconds))}
	if ids := sortedKeys(tick.Regenerated); len(ids) > 0 {
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, fmt.Sprintf("%s +%s", id, formatNumber(tick.Regenerated[id])))
		}
		lines = append(lines, "Regenerated: "+strings.Join(parts, ", "))
	}
	if len(tick.ExpiredTimers) > 0 {
		lines = append(lines, "Timers expired: "+strings.Join(tick.ExpiredTimers, ", "))
	}
	if len(tick.ExpiredStatuses) > 0 {
		lines = append(lines, "Statuses expired: "+strings.Join(tick.ExpiredStatuses, ", "))
	}
	for _, r := range tick.Results {
		if r.Applied {
			lines = append(lines, r.RuleID+" applied")
		}
	}
	lines = append(lines, ResourceSummary(tick.State))
	return lines, s.persist(ctx, tick.State)
}

func (s *Session) cmdTimer(ctx context.Context, cmd parser.Command) ([]string, error) {
	action := strings.ToLower(cmd.Arg(0))
	c, err := s.character(cmd.Arg(1))
	if err != nil {
		return nil, err
	}
	rule := cmd.Arg(2)
	switch action {
	case "pause":
		err = s.Engine.PauseTimer(c.ID, rule)
	case "resume":
		err = s.Engine.ResumeTimer(c.ID, rule)
	case "cancel":
		err = s.Engine.CancelTimer(c.ID, rule)
	default:
		return nil, errors.New("usage: timer pause|resume|cancel <character> <rule>")
	}
	if err != nil {
		return nil, err
	}
	updated, _ := s.Engine.GetCharacter(c.ID)
	return []string{fmt.Sprintf("Timer %s: %s.", rule, action)}, s.persist(ctx, updated)
}

func (s *Session) cmdStatus(ctx context.Context, cmd parser.Command) ([]string, error) {
	action := strings.ToLower(cmd.Arg(0))
	c, err := s.character(cmd.Arg(1))
	if err != nil {
		return nil, err
	}
	var line string
	switch action {
	case "add":
		spec := engine.StatusSpec{Name: cmd.Arg(2)}
		if secs := cmd.Arg(3); secs != "" {
			f, err := strconv.ParseFloat(secs, 64)
			if err != nil {
				return nil, fmt.Errorf("bad duration %q", secs)
			}
			spec.Duration = time.Duration(f * float64(time.Second))
		}
		st, err := s.Engine.AddStatus(c.ID, spec)
		if err != nil {
			return nil, err
		}
		line = fmt.Sprintf("%s is now %s.", c.Name, st.Name)
	case "remove":
		n, err := s.Engine.RemoveStatus(c.ID, cmd.Arg(2))
		if err != nil {
			return nil, err
		}
		line = fmt.Sprintf("Removed %d status(es).", n)
	default:
		return nil, errors.New("usage: status add <character> <name> [seconds] | status remove <character> <id|name>")
	}
	updated, _ := s.Engine.GetCharacter(c.ID)
	return []string{line}, s.persist(ctx, updated)
}

func (s *Session) cmdModifier(ctx context.Context, cmd parser.Command) ([]string, error) {
	action := strings.ToLower(cmd.Arg(0))
	c, err := s.character(cmd.Arg(1))
	if err != nil {
		return nil, err
	}
	var line string
	switch action {
	case "add":
		value, err := strconv.ParseFloat(cmd.Arg(4), 64)
		if err != nil {
			return nil, errors.New("usage: modifier add <character> <stat> add|multiply|set <value> [priority]")
		}
		m := types.Modifier{Stat: cmd.Arg(2), Operation: types.ModifierOp(strings.ToLower(cmd.Arg(3))), Value: value}
		if p := cmd.Arg(5); p != "" {
			if m.Priority, err = strconv.Atoi(p); err != nil {
				return nil, fmt.Errorf("bad priority %q", p)
			}
		}
		added, err := s.Engine.AddModifier(c.ID, m)
		if err != nil {
			return nil, err
		}
		eff, _ := s.Engine.GetEffectiveStat(c.ID, added.Stat)
		line = fmt.Sprintf("Modifier %s added; %s is now %s.", added.ID, added.Stat, formatNumber(eff))
	case "remove":
		ok, err := s.Engine.RemoveModifier(c.ID, cmd.Arg(2))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no modifier %q", cmd.Arg(2))
		}
		line = "Modifier removed."
	default:
		return nil, errors.New("usage: modifier add|remove <character> ...")
	}
	updated, _ := s.Engine.GetCharacter(c.ID)
	return []string{line}, s.persist(ctx, updated)
}

func (s *Session) cmdExpose(ctx context.Context, cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	key := cmd.Arg(1)
	if strings.EqualFold(cmd.Arg(2), "clear") {
		if err := s.Engine.ClearExposure(c.ID, key); err != nil {
			return nil, err
		}
		updated, _ := s.Engine.GetCharacter(c.ID)
		return []string{fmt.Sprintf("Exposure to %s cleared.", key)}, s.persist(ctx, updated)
	}
	seconds, err := strconv.ParseFloat(cmd.Arg(2), 64)
	if err != nil {
		return nil, errors.New("usage: expose <character> <key> <seconds>|clear")
	}
	exp, err := s.Engine.RecordExposure(c.ID, key, seconds)
	if err != nil {
		return nil, err
	}
	lines := []string{fmt.Sprintf("Exposure to %s: %ss total.", key, formatNumber(exp.TotalSeconds))}
	applied, err := s.Engine.ApplyExposureAilments(c.ID, s.Ailments)
	if err != nil {
		return nil, err
	}
	for _, st := range applied {
		lines = append(lines, fmt.Sprintf("%s suffers %s.", c.Name, st.Name))
	}
	updated, _ := s.Engine.GetCharacter(c.ID)
	return lines, s.persist(ctx, updated)
}

func (s *Session) cmdGive(ctx context.Context, cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	itemID := cmd.Arg(1)
	if itemID == "" {
		return nil, errors.New("usage: give <character> <item> [name=...] [durability=N] [slot=...]")
	}
	params := cmd.Params(2)
	item := types.ItemInstance{
		ID:       uuid.NewString(),
		ItemID:   itemID,
		Name:     params["name"],
		Quantity: 1,
	}
	if item.Name == "" {
		item.Name = itemID
	}
	if d, ok := params["durability"]; ok {
		f, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return nil, fmt.Errorf("bad durability %q", d)
		}
		item.Durability = &f
		item.MaxDurability = f
	}
	slot := params["slot"]
	next, err := s.Engine.UpdateCharacter(c.ID, func(cs *types.CharacterState) {
		if slot != "" {
			cs.Equipment[slot] = &item
			return
		}
		cs.Inventory.Items = append(cs.Inventory.Items, item)
	})
	if err != nil {
		return nil, err
	}
	where := "inventory"
	if slot != "" {
		where = slot
	}
	return []string{fmt.Sprintf("%s receives %s [%s] (%s).", c.Name, item.Name, item.ID, where)}, s.persist(ctx, next)
}

func (s *Session) cmdUse(ctx context.Context, cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	instanceID, err := resolve.Item(c, cmd.Rest(1))
	if err != nil {
		return nil, err
	}
	res, err := s.Engine.ApplyItemDurability(c.ID, instanceID, s.Durability)
	if err != nil {
		return nil, err
	}

	lines := []string{fmt.Sprintf("%s used (%d uses).", res.Item.DisplayName(), res.UsageCount)}
	if res.TierUp {
		lines = append(lines, fmt.Sprintf("It is now %s (tier %d).", res.Item.DisplayName(), res.NewTier))
	}
	if res.Item.Durability != nil && !res.Broken {
		lines = append(lines, fmt.Sprintf("Durability %s/%s.", formatNumber(*res.Item.Durability), formatNumber(res.Item.MaxDurability)))
	}
	if res.Broken {
		if res.Removed {
			lines = append(lines, fmt.Sprintf("It breaks! +%s scrap, +%s insight.", formatNumber(res.Scrap), formatNumber(res.Insight)))
		} else {
			lines = append(lines, "It is worn out.")
		}
	}
	return lines, s.persist(ctx, res.State)
}

func (s *Session) cmdDamage(ctx context.Context, cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	req := engine.DamageRequest{Amount: cmd.Arg(1), Source: "console"}
	params := cmd.Params(2)
	req.Resource = params["resource"]
	if v, ok := params["source"]; ok {
		req.Source = v
	}
	for key, dst := range map[string]*float64{"defense": &req.Defense, "min": &req.Minimum} {
		if v, ok := params[key]; ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("bad %s %q", key, v)
			}
			*dst = f
		}
	}
	res, err := s.Engine.ApplyDamage(c.ID, req)
	if err != nil {
		return nil, err
	}

	resource := req.Resource
	if resource == "" {
		resource = engine.DefaultDamageResource
	}
	lines := []string{fmt.Sprintf("Rolled %s%s, %s takes %s %s damage (%s -> %s).",
		formatNumber(res.Rolled), formatRolls(res.Rolls), c.Name, formatNumber(res.Final), resource,
		formatNumber(res.Before), formatNumber(res.After))}
	for _, id := range res.Execution.Applied() {
		lines = append(lines, id+" applied")
	}
	return lines, s.persist(ctx, res.State)
}

func (s *Session) cmdEval(cmd parser.Command) ([]string, error) {
	c, err := s.character(cmd.Arg(0))
	if err != nil {
		return nil, err
	}
	expr := cmd.Rest(1)
	if expr == "" {
		return nil, errors.New("usage: eval <character> <formula>")
	}
	res, err := s.Engine.EvalFormula(c.ID, expr)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("%s = %s%s", expr, formatNumber(res.Value), formatRolls(res.Rolls))}, nil
}

func (s *Session) cmdRoll(cmd parser.Command) ([]string, error) {
	notation := cmd.Rest(0)
	if notation == "" {
		return nil, errors.New("usage: roll <notation>")
	}
	res, err := s.Engine.Formula().Eval(notation, nil)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("%s = %s%s", notation, formatNumber(res.Value), formatRolls(res.Rolls))}, nil
}

// parseValue reads a console literal as a number, a bool or a string.
func parseValue(v string) any {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}

func helpLines() []string {
	return []string{
		"System:",
		"  /save [name]   Save all characters (default: quicksave)",
		"  /load [name]   Load a saved snapshot (default: quicksave)",
		"  /trace         Toggle event trace output",
		"  /help          Show this help",
		"  /quit          Exit",
		"",
		"Characters (refer to them by id, id prefix or name):",
		"  create <name> [stat=value ...]    (new, mk)",
		"  list                              (ls)",
		"  show <char>                       (x, sheet)",
		"  delete <char>                     (rm)",
		"",
		"Rules and time:",
		"  apply <char> <rule>               (run)",
		"  trigger <char> <type> [k=v ...]   k=v narrows by action/itemId/spell/status",
		"  rules <char> [trigger]            Rules whose conditions hold (avail)",
		"  explain <char> <rule>             Show a rule's effects (why)",
		"  advance <char> <n> [ticks]        (tick, wait, z)",
		"  timer pause|resume|cancel <char> <rule>",
		"",
		"Statuses, modifiers and environment:",
		"  status add <char> <name> [seconds] | status remove <char> <id|name>",
		"  modifier add <char> <stat> add|multiply|set <value> [priority]",
		"  modifier remove <char> <modifier-id>",
		"  expose <char> <key> <seconds>|clear",
		"",
		"Items and combat:",
		"  give <char> <item> [name=...] [durability=N] [slot=...]",
		"  use <char> <item>",
		"  damage <char> <amount> [resource=..] [defense=N] [min=N]   (hit)",
		"",
		"Formulas:",
		"  eval <char> <formula>             (calc)",
		"  roll <notation>                   (r)",
		"  again (g)                         Repeat the last command",
	}
}
