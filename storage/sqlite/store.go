// Package sqlite persists characters in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/nathoo/statecore/engine/save"
	"github.com/nathoo/statecore/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a save.Store backed by SQLite. Each character is one row holding
// its JSON document.
type Store struct {
	db *sql.DB
}

var _ save.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
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
	_, err = s.db.ExecContext(ctx, `
INSERT INTO characters (id, name, ruleset_id, data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	ruleset_id = excluded.ruleset_id,
	data = excluded.data,
	updated_at = excluded.updated_at`,
		c.ID, c.Name, c.RulesetID, string(data), c.CreatedAt.UnixNano(), c.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving character %s: %w", c.ID, err)
	}
	return nil
}

// Load returns the character or save.ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*types.CharacterState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM characters WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", save.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading character %s: %w", id, err)
	}
	return save.UnmarshalCharacter([]byte(data))
}

// Delete removes the character or returns save.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM characters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting character %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting character %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", save.ErrNotFound, id)
	}
	return nil
}

// List returns every stored character ordered by creation time, then id.
func (s *Store) List(ctx context.Context) ([]*types.CharacterState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM characters ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	defer rows.Close()

	var out []*types.CharacterState
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning character: %w", err)
		}
		c, err := save.UnmarshalCharacter([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	return out, nil
}
