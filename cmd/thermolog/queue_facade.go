package main

import (
	"context"
	"fmt"

	"thermolog/internal/daemon"
	"thermolog/internal/ipc"
	"thermolog/internal/queue"
)

// queueAPI is implemented by the daemon over IPC and by the store directly,
// so queue commands work whether or not the daemon is running.
type queueAPI interface {
	Record(ctx context.Context, record queue.LogRecord) (*queue.Entry, error)
	List(ctx context.Context, states []string) ([]queue.Entry, error)
	CountPending(ctx context.Context) (int, error)
	Compact(ctx context.Context) (int64, error)
	Health(ctx context.Context) (queue.DatabaseHealth, error)
	Close() error
}

// openQueueAPI prefers a running daemon and falls back to the queue database.
func (c *commandContext) openQueueAPI() (queueAPI, bool, error) {
	if client := c.tryClient(); client != nil {
		return &queueIPCAdapter{client: client}, true, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, false, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, false, fmt.Errorf("open queue: %w", err)
	}
	return &queueStoreAdapter{store: store, lockPath: cfg.LockPath()}, false, nil
}

// --- IPC adapter ---

type queueIPCAdapter struct {
	client *ipc.Client
}

func (a *queueIPCAdapter) Record(_ context.Context, record queue.LogRecord) (*queue.Entry, error) {
	resp, err := a.client.Record(ipc.RecordRequest{Record: record})
	if err != nil {
		return nil, err
	}
	return &resp.Entry, nil
}

func (a *queueIPCAdapter) List(_ context.Context, states []string) ([]queue.Entry, error) {
	resp, err := a.client.ListEntries(states)
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (a *queueIPCAdapter) CountPending(_ context.Context) (int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return 0, err
	}
	if !resp.PendingKnown {
		return 0, fmt.Errorf("daemon could not read the pending count")
	}
	return resp.PendingCount, nil
}

func (a *queueIPCAdapter) Compact(_ context.Context) (int64, error) {
	resp, err := a.client.Compact()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *queueIPCAdapter) Health(_ context.Context) (queue.DatabaseHealth, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return queue.DatabaseHealth{}, err
	}
	return resp.Health, nil
}

func (a *queueIPCAdapter) Close() error {
	return a.client.Close()
}

// --- Store adapter ---

type queueStoreAdapter struct {
	store    *queue.Store
	lockPath string
}

func (a *queueStoreAdapter) Record(ctx context.Context, record queue.LogRecord) (*queue.Entry, error) {
	return a.store.Enqueue(ctx, record)
}

func (a *queueStoreAdapter) List(ctx context.Context, states []string) ([]queue.Entry, error) {
	parsed := make([]queue.SyncState, 0, len(states))
	for _, name := range states {
		state, ok := queue.ParseSyncState(name)
		if !ok {
			return nil, fmt.Errorf("unknown sync state %q", name)
		}
		parsed = append(parsed, state)
	}
	entries, err := a.store.List(ctx, parsed...)
	if err != nil {
		return nil, err
	}
	out := make([]queue.Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, *entry)
	}
	return out, nil
}

func (a *queueStoreAdapter) CountPending(ctx context.Context) (int, error) {
	return a.store.CountPending(ctx)
}

// Compact takes the coordinator lock so it never interleaves with a local sweep.
func (a *queueStoreAdapter) Compact(ctx context.Context) (int64, error) {
	lock, err := daemon.AcquireLock(a.lockPath)
	if err != nil {
		return 0, err
	}
	defer lock.Unlock()
	return a.store.DeleteSynced(ctx)
}

func (a *queueStoreAdapter) Health(ctx context.Context) (queue.DatabaseHealth, error) {
	return a.store.CheckHealth(ctx)
}

func (a *queueStoreAdapter) Close() error {
	return a.store.Close()
}
