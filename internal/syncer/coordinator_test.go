package syncer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"thermolog/internal/connectivity"
	"thermolog/internal/logging"
	"thermolog/internal/queue"
	"thermolog/internal/remote"
	"thermolog/internal/syncer"
	"thermolog/internal/testsupport"
)

func newCoordinator(t *testing.T, deliverer remote.Deliverer, online bool, opts ...syncer.Option) (*syncer.Coordinator, *queue.Store, *connectivity.Manual) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	observer := connectivity.NewManual(online)
	opts = append([]syncer.Option{syncer.WithLogger(logging.NewNop())}, opts...)
	return syncer.New(store, deliverer, observer, opts...), store, observer
}

func listAll(t *testing.T, store *queue.Store) []*queue.Entry {
	t.Helper()
	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	return entries
}

func TestSweepDeliversEverythingAndCompacts(t *testing.T) {
	deliverer := testsupport.NewRecordingDeliverer()
	coord, store, observer := newCoordinator(t, deliverer, false)
	ctx := context.Background()

	entries := testsupport.MustEnqueue(t, store, 3)
	if count, err := coord.PendingCount(ctx); err != nil || count != 3 {
		t.Fatalf("PendingCount = %d, %v; want 3", count, err)
	}

	if result := coord.Sweep(ctx); !result.Skipped || result.SkipReason != syncer.SkipOffline {
		t.Fatalf("expected offline skip, got %+v", result)
	}
	if len(deliverer.Attempts()) != 0 {
		t.Fatal("nothing should be delivered while offline")
	}

	observer.SetOnline(true)
	result := coord.Sweep(ctx)
	if result.Skipped || result.Aborted {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Synced != 3 || result.Compacted != 3 || result.Pending != 0 {
		t.Fatalf("unexpected result counts: %+v", result)
	}
	if !result.Drained() {
		t.Fatalf("expected drained result: %+v", result)
	}

	delivered := deliverer.Delivered()
	if len(delivered) != 3 {
		t.Fatalf("delivered %d entries, want 3", len(delivered))
	}
	for i, d := range delivered {
		if d.EntryID != entries[i].ID || d.Key != entries[i].DeliveryKey {
			t.Fatalf("delivery %d = %+v, want entry %d", i, d, entries[i].ID)
		}
		if !d.CreatedAt.Equal(entries[i].CreatedAt) {
			t.Fatalf("delivery %d lost createdAt", i)
		}
	}
	if n := testsupport.MustCountPending(t, store); n != 0 {
		t.Fatalf("pending = %d after sweep", n)
	}
	if all := listAll(t, store); len(all) != 0 {
		t.Fatalf("expected empty store after compaction, got %d entries", len(all))
	}
	if last, ok := coord.LastResult(); !ok || last.Synced != 3 {
		t.Fatalf("LastResult = %+v, %v", last, ok)
	}
}

func TestSweepStopsAtFirstFailure(t *testing.T) {
	deliverer := testsupport.NewRecordingDeliverer()
	deliverer.Reject("subject-2")
	coord, store, _ := newCoordinator(t, deliverer, true)
	ctx := context.Background()
	entries := testsupport.MustEnqueue(t, store, 3)

	result := coord.Sweep(ctx)
	if !result.Aborted || result.FailedEntryID != entries[1].ID {
		t.Fatalf("expected abort on second entry, got %+v", result)
	}
	if result.Synced != 1 || result.Attempted != 2 {
		t.Fatalf("unexpected counts: %+v", result)
	}

	attempts := deliverer.Attempts()
	if len(attempts) != 2 || attempts[0].EntryID != entries[0].ID || attempts[1].EntryID != entries[1].ID {
		t.Fatalf("unexpected attempts: %+v", attempts)
	}
	for _, a := range attempts {
		if a.EntryID == entries[2].ID {
			t.Fatal("third entry must not be attempted after the second failed")
		}
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != entries[1].ID || pending[1].ID != entries[2].ID {
		t.Fatalf("expected e2 and e3 pending, got %+v", pending)
	}

	// Compaction removed e1 but left both pending entries.
	all := listAll(t, store)
	if len(all) != 2 {
		t.Fatalf("expected 2 stored entries after compaction, got %d", len(all))
	}
	if result.Compacted != 1 {
		t.Fatalf("compacted = %d, want 1", result.Compacted)
	}

	deliverer.Accept()
	result = coord.Sweep(ctx)
	if result.Aborted || result.Synced != 2 {
		t.Fatalf("retry sweep: %+v", result)
	}
	delivered := deliverer.Delivered()
	if len(delivered) != 3 || delivered[1].EntryID != entries[1].ID || delivered[2].EntryID != entries[2].ID {
		t.Fatalf("entries not delivered in creation order: %+v", delivered)
	}
}

func TestSweepFirstRejectedKeepsEverything(t *testing.T) {
	deliverer := testsupport.NewRecordingDeliverer()
	deliverer.Reject("subject-1")
	coord, store, _ := newCoordinator(t, deliverer, true)
	testsupport.MustEnqueue(t, store, 2)

	result := coord.Sweep(context.Background())
	if !result.Aborted || result.Synced != 0 || result.Compacted != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if n := testsupport.MustCountPending(t, store); n != 2 {
		t.Fatalf("pending = %d, want 2", n)
	}
	if all := listAll(t, store); len(all) != 2 {
		t.Fatalf("no entries may be deleted, got %d stored", len(all))
	}
}

func TestConcurrentSweepsRunOnce(t *testing.T) {
	deliverer := testsupport.NewRecordingDeliverer()
	deliverer.Started = make(chan int64, 8)
	deliverer.Gate = make(chan struct{})
	coord, store, _ := newCoordinator(t, deliverer, true)
	testsupport.MustEnqueue(t, store, 1)
	ctx := context.Background()

	done := make(chan syncer.SweepResult, 1)
	go func() { done <- coord.Sweep(ctx) }()

	select {
	case <-deliverer.Started:
	case <-time.After(2 * time.Second):
		t.Fatal("first sweep never started delivering")
	}
	if !coord.Syncing() {
		t.Fatal("expected Syncing while a delivery is in flight")
	}

	for i := 0; i < 2; i++ {
		result := coord.Sweep(ctx)
		if !result.Skipped || result.SkipReason != syncer.SkipInProgress {
			t.Fatalf("overlapping sweep %d = %+v", i, result)
		}
	}
	if removed, err := coord.Compact(ctx); err != nil || removed != 0 {
		t.Fatalf("Compact during sweep = %d, %v; want 0, nil", removed, err)
	}

	close(deliverer.Gate)
	first := <-done
	if first.Skipped || first.Synced != 1 {
		t.Fatalf("first sweep = %+v", first)
	}
	if attempts := len(deliverer.Attempts()); attempts != 1 {
		t.Fatalf("attempts = %d, want exactly 1", attempts)
	}
	if coord.Syncing() {
		t.Fatal("guard not released")
	}
}

func TestParallelSweepCallsDeliverEachEntryOnce(t *testing.T) {
	deliverer := testsupport.NewRecordingDeliverer()
	coord, store, _ := newCoordinator(t, deliverer, true)
	testsupport.MustEnqueue(t, store, 5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coord.Sweep(context.Background())
		}()
	}
	wg.Wait()

	seen := map[int64]int{}
	for _, d := range deliverer.Attempts() {
		seen[d.EntryID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("entry %d delivered %d times", id, n)
		}
	}
	if len(seen) != 5 {
		t.Fatalf("delivered %d distinct entries, want 5", len(seen))
	}
}

type panicDeliverer struct{}

func (panicDeliverer) Deliver(context.Context, remote.Delivery) error {
	panic("deliverer exploded")
}

func TestSweepReleasesGuardOnPanic(t *testing.T) {
	coord, store, _ := newCoordinator(t, panicDeliverer{}, true)
	testsupport.MustEnqueue(t, store, 1)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		coord.Sweep(context.Background())
	}()

	if coord.Syncing() {
		t.Fatal("guard still held after panic")
	}
	if n := testsupport.MustCountPending(t, store); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}
}

func TestSweepAppliesRequestTimeout(t *testing.T) {
	deliverer := testsupport.NewRecordingDeliverer()
	deliverer.Gate = make(chan struct{})
	defer close(deliverer.Gate)
	coord, store, _ := newCoordinator(t, deliverer, true, syncer.WithRequestTimeout(30*time.Millisecond))
	testsupport.MustEnqueue(t, store, 2)

	result := coord.Sweep(context.Background())
	if !result.Aborted || result.Attempted != 1 {
		t.Fatalf("expected timeout abort on first entry, got %+v", result)
	}
	if n := testsupport.MustCountPending(t, store); n != 2 {
		t.Fatalf("pending = %d, want 2", n)
	}
}

func TestSweepWithoutDelivererIsSkipped(t *testing.T) {
	coord, store, _ := newCoordinator(t, nil, true)
	testsupport.MustEnqueue(t, store, 1)
	result := coord.Sweep(context.Background())
	if !result.Skipped || result.SkipReason != syncer.SkipNotConfigured {
		t.Fatalf("unexpected result: %+v", result)
	}
}

// flakyCompactStore fails DeleteSynced a configurable number of times.
type flakyCompactStore struct {
	*queue.Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyCompactStore) DeleteSynced(ctx context.Context) (int64, error) {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return 0, &queue.StorageError{Op: "delete synced", Err: errors.New("database is locked")}
	}
	return s.Store.DeleteSynced(ctx)
}

func TestCompactionFailureIsRetriedOnNextSweep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.MustOpenStore(t, cfg)
	store := &flakyCompactStore{Store: base, failures: 1}
	deliverer := testsupport.NewRecordingDeliverer()
	coord := syncer.New(store, deliverer, connectivity.NewManual(true), syncer.WithLogger(logging.NewNop()))
	ctx := context.Background()
	testsupport.MustEnqueue(t, base, 2)

	first := coord.Sweep(ctx)
	if first.Aborted || first.Synced != 2 {
		t.Fatalf("compaction failure must not fail the sweep: %+v", first)
	}
	if first.CompactError == "" || first.Compacted != 0 {
		t.Fatalf("expected recorded compaction error, got %+v", first)
	}
	if all := listAll(t, base); len(all) != 2 {
		t.Fatalf("synced entries should remain until compaction succeeds, got %d", len(all))
	}

	// Nothing new to deliver; the deferred compaction still runs.
	second := coord.Sweep(ctx)
	if second.Attempted != 0 || second.Compacted != 2 || second.CompactError != "" {
		t.Fatalf("second sweep = %+v", second)
	}
	if all := listAll(t, base); len(all) != 0 {
		t.Fatalf("expected store empty after retry, got %d", len(all))
	}

	third := coord.Sweep(ctx)
	if store.calls != 2 || third.Compacted != 0 {
		t.Fatalf("compaction should not run without new synced entries: calls=%d result=%+v", store.calls, third)
	}
}

func TestCompactOutsideSweep(t *testing.T) {
	deliverer := testsupport.NewRecordingDeliverer()
	coord, store, _ := newCoordinator(t, deliverer, true)
	entries := testsupport.MustEnqueue(t, store, 2)
	if err := store.MarkSynced(context.Background(), entries[0].ID); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}
	removed, err := coord.Compact(context.Background())
	if err != nil || removed != 1 {
		t.Fatalf("Compact = %d, %v; want 1, nil", removed, err)
	}
	if n := testsupport.MustCountPending(t, store); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}
}

// blockingCompactStore parks DeleteSynced until release is closed.
type blockingCompactStore struct {
	*queue.Store
	entered chan struct{}
	release chan struct{}
}

func (s *blockingCompactStore) DeleteSynced(ctx context.Context) (int64, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return s.Store.DeleteSynced(ctx)
}

func TestCompactDoesNotSkipSweep(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.MustOpenStore(t, cfg)
	store := &blockingCompactStore{Store: base, entered: make(chan struct{}, 1), release: make(chan struct{})}
	deliverer := testsupport.NewRecordingDeliverer()
	coord := syncer.New(store, deliverer, connectivity.NewManual(true), syncer.WithLogger(logging.NewNop()))
	ctx := context.Background()
	entries := testsupport.MustEnqueue(t, base, 3)
	if err := base.MarkSynced(ctx, entries[0].ID); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	compacted := make(chan int64, 1)
	go func() {
		removed, err := coord.Compact(ctx)
		if err != nil {
			t.Errorf("Compact failed: %v", err)
		}
		compacted <- removed
	}()
	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Compact never reached the store")
	}
	if coord.Syncing() {
		t.Fatal("Compact must not hold the sweep guard")
	}

	swept := make(chan syncer.SweepResult, 1)
	go func() { swept <- coord.Sweep(ctx) }()
	waitForAttempts(t, deliverer, 2)
	close(store.release)

	result := <-swept
	if result.Skipped || result.Synced != 2 {
		t.Fatalf("sweep during compaction = %+v", result)
	}
	if removed := <-compacted; removed+result.Compacted != 3 {
		t.Fatalf("Compact removed %d and sweep compacted %d, want 3 in total", removed, result.Compacted)
	}
	if all := listAll(t, base); len(all) != 0 {
		t.Fatalf("expected store empty, got %d entries", len(all))
	}
}

func waitForAttempts(t *testing.T, deliverer *testsupport.RecordingDeliverer, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(deliverer.Attempts()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d delivery attempts", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
