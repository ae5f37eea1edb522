package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const entryColumns = "id, payload_json, delivery_key, created_at, sync_state, synced_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry     Entry
		payload   string
		createdAt string
		syncedAt  sql.NullString
	)
	if err := scanner.Scan(&entry.ID, &payload, &entry.DeliveryKey, &createdAt, &entry.SyncState, &syncedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &entry.Record); err != nil {
		return nil, fmt.Errorf("decode payload for entry %d: %w", entry.ID, err)
	}
	ts, err := parseTimeString(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for entry %d: %w", entry.ID, err)
	}
	entry.CreatedAt = ts
	if syncedAt.Valid && syncedAt.String != "" {
		synced, err := parseTimeString(syncedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse synced_at for entry %d: %w", entry.ID, err)
		}
		entry.SyncedAt = &synced
	}
	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	defer rows.Close()
	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func encodePayload(record LogRecord) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
