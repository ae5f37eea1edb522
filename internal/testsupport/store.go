package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"thermolog/internal/config"
	"thermolog/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// Record builds a valid log record for the given subject.
func Record(subject string, value float64) queue.LogRecord {
	return queue.LogRecord{
		SubjectID: subject,
		Value:     value,
		Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Actor:     "tester",
		Status:    "ok",
	}
}

// MustEnqueue enqueues n records named subject-1..subject-n and returns them in order.
func MustEnqueue(t testing.TB, store *queue.Store, n int) []*queue.Entry {
	t.Helper()

	entries := make([]*queue.Entry, 0, n)
	for i := 1; i <= n; i++ {
		entry, err := store.Enqueue(context.Background(), Record(fmt.Sprintf("subject-%d", i), 3.5+float64(i)))
		if err != nil {
			t.Fatalf("store.Enqueue: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

// MustCountPending returns the pending count or fails the test.
func MustCountPending(t testing.TB, store *queue.Store) int {
	t.Helper()

	count, err := store.CountPending(context.Background())
	if err != nil {
		t.Fatalf("store.CountPending: %v", err)
	}
	return count
}
