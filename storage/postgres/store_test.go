package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/statecore/engine/save"
	"github.com/nathoo/statecore/types"
)

// openTestStore connects to STATECORE_TEST_POSTGRES_DSN, skipping the test
// when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("STATECORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STATECORE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Truncate(ctx))
	t.Cleanup(func() {
		_ = s.Truncate(context.Background())
		_ = s.Close()
	})
	return s
}

func character(id string, created time.Time) *types.CharacterState {
	c := &types.CharacterState{
		ID:        id,
		Name:      "Hero " + id,
		RulesetID: "fantasy",
		Stats:     map[string]any{"STR": 12.0},
		Resources: types.Resources{
			Current: map[string]float64{"health": 55},
			Max:     map[string]float64{"health": 100},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	save.Normalize(c)
	return c
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, character("b", base.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, character("a", base)))

	got, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Hero a", got.Name)
	assert.Equal(t, 12.0, got.Stats["STR"])

	c := character("a", base)
	c.Resources.Current["health"] = 1
	require.NoError(t, s.Save(ctx, c))
	got, err = s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Resources.Current["health"])

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Load(ctx, "a")
	assert.ErrorIs(t, err, save.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "a"), save.ErrNotFound)
}
