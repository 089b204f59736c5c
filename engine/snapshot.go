package engine

import (
	"errors"
	"fmt"

	"github.com/nathoo/statecore/engine/dice"
	"github.com/nathoo/statecore/engine/formula"
	"github.com/nathoo/statecore/engine/save"
	"github.com/nathoo/statecore/engine/state"
	"github.com/nathoo/statecore/types"
)

// Snapshot captures every character and, when dice come from the seeded
// generator, its seed and draw position.
func (e *Engine) Snapshot() *save.Snapshot {
	snap := &save.Snapshot{
		Version:   save.FormatVersion,
		RulesetID: e.ruleset.ID,
		SavedAt:   e.clock(),
	}
	for _, c := range e.GetAllCharacters() {
		snap.Characters = append(snap.Characters, state.Clone(c))
	}
	if e.rng != nil {
		snap.RNGSeed = e.rng.Seed()
		snap.RNGPosition = e.rng.Position()
	}
	return snap
}

// Restore replaces every character with the snapshot's. A snapshot taken
// with a seeded generator also restores the dice to the same position, so
// subsequent rolls repeat.
func (e *Engine) Restore(snap *save.Snapshot) error {
	if snap == nil {
		return errors.New("restore: nil snapshot")
	}
	if snap.RulesetID != "" && e.ruleset.ID != "" && snap.RulesetID != e.ruleset.ID {
		e.log.Warn().
			Str("snapshot", snap.RulesetID).
			Str("ruleset", e.ruleset.ID).
			Msg("restoring snapshot taken with another ruleset")
	}

	chars := make(map[string]*types.CharacterState, len(snap.Characters))
	for _, c := range snap.Characters {
		if c == nil {
			continue
		}
		if c.ID == "" {
			return fmt.Errorf("restore: character %q has no id", c.Name)
		}
		cp := state.Clone(c)
		save.Normalize(cp)
		chars[cp.ID] = cp
	}
	e.characters = chars

	if e.rng != nil && (snap.RNGSeed != 0 || snap.RNGPosition != 0) {
		e.rng = dice.RestoreRNG(snap.RNGSeed, snap.RNGPosition)
		e.dice = e.rng
		e.formula = formula.New(e.dice, e.log)
		e.UpdateRuleset(e.ruleset)
	}
	e.log.Info().Int("characters", len(chars)).Msg("snapshot restored")
	return nil
}
