package queue

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Enqueue persists a new pending entry. The record is validated and
// normalised first; any storage failure is returned wrapped in ErrStorageUnavailable.
func (s *Store) Enqueue(ctx context.Context, record LogRecord) (*Entry, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	record = record.normalized()
	payload, err := encodePayload(record)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		Record:      record,
		DeliveryKey: uuid.NewString(),
		CreatedAt:   s.now().UTC(),
		SyncState:   SyncPending,
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO queue_entries (payload_json, delivery_key, created_at, sync_state) VALUES (?, ?, ?, ?)`,
		payload, entry.DeliveryKey, formatTime(entry.CreatedAt), SyncPending,
	)
	if err != nil {
		return nil, storageErr("enqueue", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("enqueue", err)
	}
	entry.ID = id
	return entry, nil
}

// ListPending returns every pending entry in ascending id order.
func (s *Store) ListPending(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+entryColumns+` FROM queue_entries INDEXED BY `+syncStateIndex+`
         WHERE sync_state = ? ORDER BY id ASC`, SyncPending)
	if err != nil {
		return nil, storageErr("list pending", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, storageErr("list pending", err)
	}
	return entries, nil
}

// MarkSynced flips a pending entry to synced. Unknown ids and entries that
// are already synced are left untouched and do not produce an error.
func (s *Store) MarkSynced(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE queue_entries SET sync_state = ?, synced_at = ? WHERE id = ? AND sync_state = ?`,
		SyncSynced, formatTime(s.now()), id, SyncPending,
	)
	return storageErr("mark synced", err)
}

// DeleteSynced removes every synced entry in one transaction and returns how
// many were deleted. Pending entries are never touched.
func (s *Store) DeleteSynced(ctx context.Context) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ensureContext(ctx), `DELETE FROM queue_entries WHERE sync_state = ?`, SyncSynced)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, storageErr("delete synced", err)
	}
	return removed, nil
}

// CountPending counts pending entries through the sync_state index.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM queue_entries INDEXED BY `+syncStateIndex+` WHERE sync_state = ?`, SyncPending,
	).Scan(&count)
	if err != nil {
		return 0, storageErr("count pending", err)
	}
	return count, nil
}

// GetByID fetches a single entry. It returns nil when the id is unknown.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get entry", err)
	}
	return entry, nil
}

// List returns entries filtered by state in ascending id order. With no
// states every stored entry is returned.
func (s *Store) List(ctx context.Context, states ...SyncState) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM queue_entries`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		query += ` WHERE sync_state IN (` + makePlaceholders(len(states)) + `)`
		for _, state := range states {
			args = append(args, state)
		}
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, storageErr("list", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, storageErr("list", err)
	}
	return entries, nil
}
