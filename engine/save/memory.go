package save

import (
	"context"
	"sort"
	"sync"

	"github.com/nathoo/statecore/types"
)

// MemoryStore is a Store kept in process memory. Characters are stored as
// encoded JSON so callers never share values with the store.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*types.CharacterState, error) {
	m.mu.Lock()
	raw, ok := m.data[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return UnmarshalCharacter(raw)
}

func (m *MemoryStore) Save(_ context.Context, c *types.CharacterState) error {
	raw, err := MarshalCharacter(c)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[c.ID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return ErrNotFound
	}
	delete(m.data, id)
	return nil
}

// List returns every stored character ordered by creation time, then id.
func (m *MemoryStore) List(_ context.Context) ([]*types.CharacterState, error) {
	m.mu.Lock()
	raws := make([][]byte, 0, len(m.data))
	for _, raw := range m.data {
		raws = append(raws, raw)
	}
	m.mu.Unlock()

	out := make([]*types.CharacterState, 0, len(raws))
	for _, raw := range raws {
		c, err := UnmarshalCharacter(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	SortCharacters(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// SortCharacters orders characters by creation time, then id.
func SortCharacters(cs []*types.CharacterState) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}
