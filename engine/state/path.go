package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nathoo/statecore/types"
)

// ErrReadOnlyPath is returned when an effect targets a field that is only
// addressable for reading (statuses, modifiers, equipment and the like).
var ErrReadOnlyPath = errors.New("path is read-only")

// ErrInvalidPath is returned for a path that cannot be written as given.
var ErrInvalidPath = errors.New("invalid path")

// ErrNilState is returned when Set is given no character.
var ErrNilState = errors.New("nil character state")

// accessor resolves the part of a path below its root segment. set receives
// a shallow copy of the character and must copy whatever it modifies.
type accessor struct {
	get func(s *types.CharacterState, rest []string) (any, bool)
	set func(s *types.CharacterState, rest []string, v any) error
}

// accessors is the table of typed roots. Any other root addresses the
// custom data bag with the full path.
var accessors = map[string]accessor{
	"id": {
		get: func(s *types.CharacterState, rest []string) (any, bool) { return leaf(s.ID, rest) },
	},
	"rulesetId": {
		get: func(s *types.CharacterState, rest []string) (any, bool) { return leaf(s.RulesetID, rest) },
	},
	"name": {
		get: func(s *types.CharacterState, rest []string) (any, bool) { return leaf(s.Name, rest) },
		set: func(s *types.CharacterState, rest []string, v any) error {
			name, ok := v.(string)
			if len(rest) != 0 || !ok {
				return fmt.Errorf("%w: name takes a string", ErrInvalidPath)
			}
			s.Name = name
			return nil
		},
	},
	"stats": {
		get: func(s *types.CharacterState, rest []string) (any, bool) {
			if len(rest) == 0 {
				return CopyMap(s.Stats), true
			}
			v, ok := s.Stats[rest[0]]
			if !ok {
				return nil, false
			}
			return lookup(v, rest[1:])
		},
		set: func(s *types.CharacterState, rest []string, v any) error {
			if len(rest) == 0 {
				return fmt.Errorf("%w: stats needs a stat id", ErrInvalidPath)
			}
			stats := shallowCopy(s.Stats)
			if len(rest) == 1 {
				stats[rest[0]] = v
			} else {
				stats[rest[0]] = setIn(stats[rest[0]], rest[1:], v)
			}
			s.Stats = stats
			return nil
		},
	},
	"resources": {
		get: func(s *types.CharacterState, rest []string) (any, bool) {
			if len(rest) != 2 {
				return nil, false
			}
			m := resourceMap(&s.Resources, rest[0])
			if m == nil {
				return nil, false
			}
			v, ok := m[rest[1]]
			return v, ok
		},
		set: func(s *types.CharacterState, rest []string, v any) error {
			if len(rest) != 2 || (rest[0] != "current" && rest[0] != "max") {
				return fmt.Errorf("%w: resources.<current|max>.<id>", ErrInvalidPath)
			}
			f, ok := ToFloat(v)
			if !ok {
				return fmt.Errorf("%w: resource values are numeric, got %T", ErrInvalidPath, v)
			}
			m := make(map[string]float64, len(resourceMap(&s.Resources, rest[0]))+1)
			for k, old := range resourceMap(&s.Resources, rest[0]) {
				m[k] = old
			}
			m[rest[1]] = f
			if rest[0] == "current" {
				s.Resources.Current = m
			} else {
				s.Resources.Max = m
			}
			return nil
		},
	},
	"progression": {
		get: func(s *types.CharacterState, rest []string) (any, bool) {
			if len(rest) != 1 {
				return nil, false
			}
			v, ok := s.Progression[rest[0]]
			return v, ok
		},
		set: func(s *types.CharacterState, rest []string, v any) error {
			f, ok := ToFloat(v)
			if len(rest) != 1 || !ok {
				return fmt.Errorf("%w: progression.<currency> takes a number", ErrInvalidPath)
			}
			m := make(map[string]float64, len(s.Progression)+1)
			for k, old := range s.Progression {
				m[k] = old
			}
			m[rest[0]] = f
			s.Progression = m
			return nil
		},
	},
	"custom": {
		get: func(s *types.CharacterState, rest []string) (any, bool) {
			if len(rest) == 0 {
				return CopyMap(s.Custom), true
			}
			return lookup(map[string]any(s.Custom), rest)
		},
		set: func(s *types.CharacterState, rest []string, v any) error {
			if len(rest) == 0 {
				return fmt.Errorf("%w: custom needs a key", ErrInvalidPath)
			}
			s.Custom = setIn(s.Custom, rest, v).(map[string]any)
			return nil
		},
	},
	"statuses": {
		get: func(s *types.CharacterState, rest []string) (any, bool) {
			names := make([]any, 0, len(s.Statuses))
			for _, st := range s.Statuses {
				names = append(names, st.Name)
			}
			return leaf(names, rest)
		},
	},
	"modifiers": {
		get: func(s *types.CharacterState, rest []string) (any, bool) {
			ids := make([]any, 0, len(s.Modifiers))
			for _, m := range s.Modifiers {
				ids = append(ids, m.ID)
			}
			return leaf(ids, rest)
		},
	},
	"inventory": {
		get: func(s *types.CharacterState, rest []string) (any, bool) {
			if len(rest) != 1 {
				return nil, false
			}
			switch rest[0] {
			case "capacity":
				return float64(s.Inventory.Capacity), true
			case "count":
				return float64(len(s.Inventory.Items)), true
			case "items":
				ids := make([]any, 0, len(s.Inventory.Items))
				for _, it := range s.Inventory.Items {
					ids = append(ids, it.ItemID)
				}
				return ids, true
			}
			return nil, false
		},
	},
	"equipment": {
		get: func(s *types.CharacterState, rest []string) (any, bool) {
			if len(rest) == 0 {
				slots := make(map[string]any, len(s.Equipment))
				for slot, it := range s.Equipment {
					if it != nil {
						slots[slot] = it.ItemID
					} else {
						slots[slot] = nil
					}
				}
				return slots, true
			}
			it, ok := s.Equipment[rest[0]]
			if !ok {
				return nil, false
			}
			if it == nil {
				return leaf(nil, rest[1:])
			}
			return leaf(it.ItemID, rest[1:])
		},
	},
	"timers": {
		get: func(s *types.CharacterState, rest []string) (any, bool) {
			if len(rest) != 2 {
				return nil, false
			}
			t, ok := s.Timers[rest[0]]
			if !ok {
				return nil, false
			}
			switch rest[1] {
			case "remaining":
				return t.Remaining, true
			case "duration":
				return t.Duration, true
			case "paused":
				return t.Paused, true
			}
			return nil, false
		},
	},
	"environment": {
		get: func(s *types.CharacterState, rest []string) (any, bool) {
			if len(rest) != 3 || rest[0] != "exposures" {
				return nil, false
			}
			e, ok := s.Environment.Exposures[rest[1]]
			if !ok {
				return nil, false
			}
			if rest[2] == "totalSeconds" {
				return e.TotalSeconds, true
			}
			return nil, false
		},
	},
}

// SplitPath splits a dotted field path.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get resolves a dotted field path against the character. A single-segment
// path naming a stat resolves to that stat when no custom key shadows it.
func Get(s *types.CharacterState, path string) (any, bool) {
	parts := SplitPath(path)
	if s == nil || len(parts) == 0 {
		return nil, false
	}
	if acc, ok := accessors[parts[0]]; ok {
		return acc.get(s, parts[1:])
	}
	if v, ok := lookup(map[string]any(s.Custom), parts); ok {
		return v, true
	}
	if len(parts) == 1 {
		if v, ok := s.Stats[parts[0]]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set returns a copy of s with the field at path replaced by v. The input
// character is not modified; untouched branches are shared with the copy.
// Missing intermediate objects are created.
func Set(s *types.CharacterState, path string, v any) (*types.CharacterState, error) {
	if s == nil {
		return nil, ErrNilState
	}
	parts := SplitPath(path)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	next := *s
	if acc, ok := accessors[parts[0]]; ok {
		if acc.set == nil {
			return nil, fmt.Errorf("%w: %s", ErrReadOnlyPath, path)
		}
		if err := acc.set(&next, parts[1:], v); err != nil {
			return nil, fmt.Errorf("set %s: %w", path, err)
		}
		return &next, nil
	}
	next.Custom = setIn(next.Custom, parts, v).(map[string]any)
	return &next, nil
}

func leaf(v any, rest []string) (any, bool) {
	if len(rest) != 0 {
		return nil, false
	}
	return v, true
}

func lookup(v any, rest []string) (any, bool) {
	for _, key := range rest {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return v, true
}

// setIn copies the maps along keys and writes v at the end. A missing or
// non-object intermediate is replaced by an empty object.
func setIn(root any, keys []string, v any) any {
	if len(keys) == 0 {
		return v
	}
	m, _ := root.(map[string]any)
	out := shallowCopy(m)
	out[keys[0]] = setIn(out[keys[0]], keys[1:], v)
	return out
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func resourceMap(r *types.Resources, which string) map[string]float64 {
	switch which {
	case "current":
		return r.Current
	case "max":
		return r.Max
	}
	return nil
}
