package main

import (
	"context"
	"encoding/json"
	"testing"

	"thermolog/internal/queue"
	"thermolog/internal/testsupport"
)

func TestQueueListAndCountThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustEnqueue(t, env.store, 3)

	out, _, err := runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "SUBJECT")
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"queue", "count"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue count: %v", err)
	}
	requireContains(t, out, "3 pending")
}

func TestQueueListFiltersByState(t *testing.T) {
	cfg, socket, configPath := setupOfflineEnv(t)
	store := testsupport.MustOpenStore(t, cfg)
	entries := testsupport.MustEnqueue(t, store, 2)
	if err := store.MarkSynced(context.Background(), entries[0].ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "list", "--state", "synced", "--json"}, socket, configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var listed []queue.Entry
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list: %v (%s)", err, out)
	}
	if len(listed) != 1 || listed[0].ID != entries[0].ID {
		t.Fatalf("expected only entry %d, got %+v", entries[0].ID, listed)
	}

	if _, _, err := runCLI(t, []string{"queue", "list", "--state", "lost"}, socket, configPath); err == nil {
		t.Fatal("expected unknown state to fail")
	}
}

func TestQueueListEmpty(t *testing.T) {
	_, socket, configPath := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"queue", "list"}, socket, configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")

	out, _, err = runCLI(t, []string{"queue", "list", "--json"}, socket, configPath)
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	requireContains(t, out, "[]")
}

func TestQueueCompactOffline(t *testing.T) {
	cfg, socket, configPath := setupOfflineEnv(t)
	store := testsupport.MustOpenStore(t, cfg)
	entries := testsupport.MustEnqueue(t, store, 3)
	ctx := context.Background()
	for _, entry := range entries[:2] {
		if err := store.MarkSynced(ctx, entry.ID); err != nil {
			t.Fatalf("MarkSynced: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"queue", "compact"}, socket, configPath)
	if err != nil {
		t.Fatalf("queue compact: %v", err)
	}
	requireContains(t, out, "Removed 2 synced entries")
	if got := testsupport.MustCountPending(t, store); got != 1 {
		t.Fatalf("expected pending entry to survive compaction, got %d", got)
	}
}

func TestQueueHealth(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustEnqueue(t, env.store, 1)

	out, _, err := runCLI(t, []string{"queue", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, out, "Integrity check: yes")
	requireContains(t, out, "Entries: 1 total, 1 pending")
}
