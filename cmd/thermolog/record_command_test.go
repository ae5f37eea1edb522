package main

import (
	"context"
	"encoding/json"
	"testing"

	"thermolog/internal/queue"
	"thermolog/internal/testsupport"
)

func TestRecordThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"record", "--subject", "freezer-2", "--value", "-18.5", "--actor", "kim", "--note", "door ajar"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	requireContains(t, out, "Recorded entry #1 for freezer-2 (-18.50)")
	if got := testsupport.MustCountPending(t, env.store); got != 1 {
		t.Fatalf("expected 1 pending entry, got %d", got)
	}
	if status := env.daemon.Snapshot(); status.PendingCount != 1 {
		t.Fatalf("expected status surface to report 1 pending, got %d", status.PendingCount)
	}
}

func TestRecordWithoutDaemonWritesStore(t *testing.T) {
	cfg, socket, configPath := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"record", "--subject", "fridge", "--value", "3.2", "--actor", "lee", "--at", "2026-03-14T09:30:00Z", "--json"}, socket, configPath)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	var entry queue.Entry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("decode entry: %v (%s)", err, out)
	}
	if entry.Record.SubjectID != "fridge" || entry.SyncState != queue.SyncPending {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if got := entry.Record.Timestamp.Format("2006-01-02T15:04:05Z07:00"); got != "2026-03-14T09:30:00Z" {
		t.Fatalf("unexpected timestamp %s", got)
	}

	store := testsupport.MustOpenStore(t, cfg)
	count, err := store.CountPending(context.Background())
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 pending entry on disk, got %d", count)
	}
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	_, socket, configPath := setupOfflineEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing actor", []string{"record", "--subject", "fridge", "--value", "3"}},
		{"blank subject", []string{"record", "--subject", "  ", "--value", "3", "--actor", "lee"}},
		{"bad timestamp", []string{"record", "--subject", "fridge", "--value", "3", "--actor", "lee", "--at", "yesterday"}},
		{"not a number", []string{"record", "--subject", "fridge", "--value", "NaN", "--actor", "lee"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := runCLI(t, tt.args, socket, configPath); err == nil {
				t.Fatal("expected record to fail")
			}
		})
	}
}
