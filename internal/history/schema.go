package history

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version. Bump it with any change to
// schema.sql.
const schemaVersion = 1

// ErrSchemaMismatch reports a history database written by a newer cratedig.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// historyTables lists every table schema.sql creates, children first.
var historyTables = []string{"history_transitions", "history_entries"}

// initSchema prepares the database. History only records past attempts, so a
// database from an older version is rebuilt rather than migrated; one from a
// newer version is left untouched.
func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case version == schemaVersion:
		return nil
	case version > schemaVersion:
		return fmt.Errorf("%w: %s has version %d, this build understands %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	default:
		return s.rebuildSchema(ctx)
	}
}

func (s *Store) rebuildSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range historyTables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
