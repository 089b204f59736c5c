// Package resolve maps console references to characters and item instances.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/statecore/types"
)

// AmbiguityError indicates multiple candidates matched a reference.
type AmbiguityError struct {
	Ref        string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("which %s? (%s)", e.Ref, strings.Join(e.Candidates, ", "))
}

// NotFoundError indicates nothing matched a reference.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s matches %q", e.Kind, e.Ref)
}

// Character resolves ref against chars. An exact id wins, then a unique id
// prefix, then a case-insensitive name or name word.
func Character(chars []*types.CharacterState, ref string) (*types.CharacterState, error) {
	if ref == "" {
		return nil, &NotFoundError{Kind: "character", Ref: ref}
	}
	for _, c := range chars {
		if c.ID == ref {
			return c, nil
		}
	}

	var matches []*types.CharacterState
	for _, c := range chars {
		if strings.HasPrefix(c.ID, ref) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		refLower := strings.ToLower(ref)
		for _, c := range chars {
			if matchesName(c.Name, refLower) {
				matches = append(matches, c)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, &NotFoundError{Kind: "character", Ref: ref}
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, c := range matches {
			names[i] = fmt.Sprintf("%s [%s]", c.Name, shortID(c.ID))
		}
		sort.Strings(names)
		return nil, &AmbiguityError{Ref: ref, Candidates: names}
	}
}

// Item resolves ref to an item instance id carried or equipped by c. It
// matches the instance id, the item definition id, or the display name.
func Item(c *types.CharacterState, ref string) (string, error) {
	items := make([]types.ItemInstance, 0, len(c.Inventory.Items)+len(c.Equipment))
	items = append(items, c.Inventory.Items...)
	slots := make([]string, 0, len(c.Equipment))
	for slot := range c.Equipment {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	for _, slot := range slots {
		if it := c.Equipment[slot]; it != nil {
			items = append(items, *it)
		}
	}

	for _, it := range items {
		if it.ID == ref {
			return it.ID, nil
		}
	}

	refLower := strings.ToLower(ref)
	var matches []string
	for _, it := range items {
		if strings.EqualFold(it.ItemID, ref) ||
			matchesName(it.Name, refLower) ||
			matchesName(it.LegacyName, refLower) ||
			strings.ReplaceAll(refLower, " ", "_") == strings.ToLower(it.ItemID) {
			matches = append(matches, it.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Kind: "item", Ref: ref}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguityError{Ref: ref, Candidates: matches}
	}
}

// matchesName reports whether the query equals the name or any word in it,
// ignoring case. "aria" matches "Aria Stone".
func matchesName(name, queryLower string) bool {
	if name == "" {
		return false
	}
	nameLower := strings.ToLower(name)
	if nameLower == queryLower {
		return true
	}
	for _, word := range strings.Fields(nameLower) {
		if word == queryLower {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
