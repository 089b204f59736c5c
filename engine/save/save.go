// Package save implements JSON serialization of engine snapshots and
// characters, and the narrow Store interface hosts persist characters through.
package save

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nathoo/statecore/types"
)

// FormatVersion is written into every snapshot.
const FormatVersion = 1

// ErrNotFound is returned by stores for an unknown character id.
var ErrNotFound = errors.New("character not found in store")

// Store persists characters. The engine never calls it; hosts save after an
// engine call returns.
type Store interface {
	Load(ctx context.Context, id string) (*types.CharacterState, error)
	Save(ctx context.Context, c *types.CharacterState) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*types.CharacterState, error)
	Close() error
}

// Snapshot is the JSON-serializable engine save format.
type Snapshot struct {
	Version     int                     `json:"version"`
	RulesetID   string                  `json:"rulesetId"`
	SavedAt     time.Time               `json:"savedAt"`
	RNGSeed     int64                   `json:"rngSeed"`
	RNGPosition int64                   `json:"rngPosition"`
	Characters  []*types.CharacterState `json:"characters"`
}

// Encode serializes a snapshot to indented JSON.
func Encode(snap *Snapshot) ([]byte, error) {
	if snap.Version == 0 {
		snap.Version = FormatVersion
	}
	return json.MarshalIndent(snap, "", "  ")
}

// Decode deserializes a snapshot. Character maps are never nil after decode.
func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version > FormatVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, FormatVersion)
	}
	kept := snap.Characters[:0]
	for _, c := range snap.Characters {
		if c == nil {
			continue
		}
		Normalize(c)
		kept = append(kept, c)
	}
	snap.Characters = kept
	return &snap, nil
}

// MarshalCharacter serializes one character to compact JSON.
func MarshalCharacter(c *types.CharacterState) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCharacter deserializes one character and normalizes it.
func UnmarshalCharacter(data []byte) (*types.CharacterState, error) {
	var c types.CharacterState
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding character: %w", err)
	}
	Normalize(&c)
	return &c, nil
}

// Normalize replaces nil maps and slices with empty ones.
func Normalize(c *types.CharacterState) {
	if c.Stats == nil {
		c.Stats = map[string]any{}
	}
	if c.Resources.Current == nil {
		c.Resources.Current = map[string]float64{}
	}
	if c.Resources.Max == nil {
		c.Resources.Max = map[string]float64{}
	}
	if c.Inventory.Items == nil {
		c.Inventory.Items = []types.ItemInstance{}
	}
	if c.Equipment == nil {
		c.Equipment = map[string]*types.ItemInstance{}
	}
	if c.Statuses == nil {
		c.Statuses = []types.Status{}
	}
	if c.Modifiers == nil {
		c.Modifiers = []types.Modifier{}
	}
	if c.Timers == nil {
		c.Timers = map[string]types.Timer{}
	}
	if c.Environment.Exposures == nil {
		c.Environment.Exposures = map[string]types.Exposure{}
	}
	if c.Progression == nil {
		c.Progression = map[string]float64{}
	}
	if c.Custom == nil {
		c.Custom = map[string]any{}
	}
}

// WriteFile encodes snap to path.
func WriteFile(path string, snap *Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// ReadFile decodes the snapshot at path.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return Decode(data)
}
