package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version. Bump it when schema.sql changes.
const schemaVersion = 1

const syncStateIndex = "idx_queue_entries_sync_state"

// ErrSchemaMismatch indicates the database was written with a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) userVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	version, err := s.userVersion(ctx)
	if err != nil {
		return err
	}
	switch {
	case version == schemaVersion:
		return nil
	case version == 0:
		var tables int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'queue_entries'",
		).Scan(&tables); err != nil {
			return fmt.Errorf("inspect database: %w", err)
		}
		if tables == 0 {
			return s.createSchema(ctx)
		}
	}
	return fmt.Errorf("%w: database has version %d, expected %d (move %s aside to start a fresh queue)",
		ErrSchemaMismatch, version, schemaVersion, s.path)
}

// createSchema applies schema.sql and stamps the version in one transaction.
func (s *Store) createSchema(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	})
}
