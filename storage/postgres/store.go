// Package postgres persists characters in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/nathoo/statecore/engine/save"
	"github.com/nathoo/statecore/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a save.Store backed by a pgx connection pool. Characters are
// stored as JSONB documents.
type Store struct {
	pool *pgxpool.Pool
}

var _ save.Store = (*Store)(nil)

// Open runs migrations on dsn and connects a pool.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	if err := RunMigrations(ctx, dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// RunMigrations applies the embedded goose migrations to dsn.
func RunMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Save inserts or replaces the character.
func (s *Store) Save(ctx context.Context, c *types.CharacterState) error {
	if c == nil || c.ID == "" {
		return errors.New("character id is required")
	}
	data, err := save.MarshalCharacter(c)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO characters (id, name, ruleset_id, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	ruleset_id = EXCLUDED.ruleset_id,
	data = EXCLUDED.data,
	updated_at = EXCLUDED.updated_at`,
		c.ID, c.Name, c.RulesetID, string(data), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving character %s: %w", c.ID, err)
	}
	return nil
}

// Load returns the character or save.ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*types.CharacterState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM characters WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", save.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading character %s: %w", id, err)
	}
	return save.UnmarshalCharacter(data)
}

// Delete removes the character or returns save.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting character %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", save.ErrNotFound, id)
	}
	return nil
}

// List returns every stored character ordered by creation time, then id.
func (s *Store) List(ctx context.Context) ([]*types.CharacterState, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM characters ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	out := make([]*types.CharacterState, 0, len(docs))
	for _, data := range docs {
		c, err := save.UnmarshalCharacter(data)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Truncate removes every character. Tests use it to start clean.
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE characters`); err != nil {
		return fmt.Errorf("truncating characters: %w", err)
	}
	return nil
}
