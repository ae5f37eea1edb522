package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns a count of entries grouped by sync state.
func (s *Store) Stats(ctx context.Context) (map[SyncState]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT sync_state, COUNT(1) FROM queue_entries GROUP BY sync_state`)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	defer rows.Close()

	stats := map[SyncState]int{SyncPending: 0, SyncSynced: 0}
	for rows.Next() {
		var state SyncState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, storageErr("stats", err)
		}
		stats[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("stats", err)
	}
	return stats, nil
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:          s.path,
		ExpectedVersion: schemaVersion,
	}
	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	if health.SchemaVersion, err = s.userVersion(connCtx); err != nil {
		health.Error = err.Error()
		return health, err
	}

	exists := func(kind, name string) (bool, error) {
		var found string
		err := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = ? AND name = ?", kind, name).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	}
	if health.TableExists, err = exists("table", "queue_entries"); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	if health.IndexExists, err = exists("index", syncStateIndex); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query index info: %w", err)
	}

	if health.TableExists {
		row := s.db.QueryRowContext(connCtx, "SELECT COUNT(1), COALESCE(SUM(CASE WHEN sync_state = 0 THEN 1 ELSE 0 END), 0) FROM queue_entries")
		if err := row.Scan(&health.TotalEntries, &health.PendingEntries); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count queue entries: %w", err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")
	return health, nil
}
