package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"thermolog/internal/connectivity"
	"thermolog/internal/logging"
	"thermolog/internal/metrics"
	"thermolog/internal/queue"
	"thermolog/internal/remote"
)

// Store is the part of the durable queue the coordinator drives.
type Store interface {
	ListPending(ctx context.Context) ([]*queue.Entry, error)
	MarkSynced(ctx context.Context, id int64) error
	DeleteSynced(ctx context.Context) (int64, error)
	CountPending(ctx context.Context) (int, error)
}

const defaultRequestTimeout = 15 * time.Second

// Coordinator owns the sweep guard for one store.
type Coordinator struct {
	store     Store
	deliverer remote.Deliverer
	observer  connectivity.Observer

	logger         *slog.Logger
	metrics        *metrics.Metrics
	requestTimeout time.Duration
	now            func() time.Time

	syncing        atomic.Bool
	compactPending atomic.Bool

	// compactMu serialises DeleteSynced calls. It is independent of the sweep
	// guard so an operator compaction never causes a sweep to be skipped.
	compactMu sync.Mutex

	mu   sync.Mutex
	last *SweepResult
}

// Option customises a Coordinator.
type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithRequestTimeout bounds each delivery request. Non-positive values keep the default.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a coordinator. A nil deliverer makes every sweep a no-op
// reporting SkipNotConfigured; a nil observer counts as always online.
func New(store Store, deliverer remote.Deliverer, observer connectivity.Observer, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		deliverer:      deliverer,
		observer:       observer,
		requestTimeout: defaultRequestTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "sync-coordinator")
	return c
}

// Syncing reports whether a sweep currently holds the guard.
func (c *Coordinator) Syncing() bool {
	return c.syncing.Load()
}

// LastResult returns the most recent sweep that was not skipped.
func (c *Coordinator) LastResult() (SweepResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return SweepResult{}, false
	}
	return *c.last, true
}

// PendingCount returns the number of undelivered entries.
func (c *Coordinator) PendingCount(ctx context.Context) (int, error) {
	count, err := c.store.CountPending(ctx)
	if err != nil {
		return 0, err
	}
	c.metrics.SetPending(count)
	return count, nil
}

func (c *Coordinator) online() bool {
	return c.observer == nil || c.observer.Online()
}

func (c *Coordinator) acquire() bool {
	if !c.syncing.CompareAndSwap(false, true) {
		return false
	}
	c.metrics.SetSyncing(true)
	return true
}

func (c *Coordinator) release() {
	c.syncing.Store(false)
	c.metrics.SetSyncing(false)
}

func (c *Coordinator) skipped(reason string) SweepResult {
	now := c.now()
	c.metrics.ObserveSweep(metrics.OutcomeSkipped, 0)
	c.logger.Debug("sweep skipped", logging.String("reason", reason))
	return SweepResult{Skipped: true, SkipReason: reason, StartedAt: now, FinishedAt: now}
}

// Sweep delivers pending entries in id order until one fails. It returns
// immediately when offline, unconfigured, or already sweeping.
func (c *Coordinator) Sweep(ctx context.Context) SweepResult {
	if c.deliverer == nil {
		return c.skipped(SkipNotConfigured)
	}
	if !c.online() {
		return c.skipped(SkipOffline)
	}
	if !c.acquire() {
		return c.skipped(SkipInProgress)
	}
	defer c.release()

	result := SweepResult{StartedAt: c.now()}
	c.run(ctx, &result)
	result.FinishedAt = c.now()

	if count, err := c.PendingCount(ctx); err == nil {
		result.Pending = count
	}

	outcome := metrics.OutcomeCompleted
	switch {
	case result.Aborted:
		outcome = metrics.OutcomeAborted
	case result.Attempted == 0:
		outcome = metrics.OutcomeEmpty
	}
	c.metrics.ObserveSweep(outcome, result.Duration())

	c.mu.Lock()
	last := result
	c.last = &last
	c.mu.Unlock()

	if result.Attempted > 0 || result.Aborted {
		c.logger.Info("sweep finished",
			logging.String(logging.FieldEventType, "sweep_finished"),
			logging.String("outcome", outcome),
			logging.Int("attempted", result.Attempted),
			logging.Int("synced", result.Synced),
			logging.Int("pending", result.Pending),
			logging.Int64("compacted", result.Compacted),
			logging.Duration("duration", result.Duration()),
		)
	}
	return result
}

func (c *Coordinator) run(ctx context.Context, result *SweepResult) {
	entries, err := c.store.ListPending(ctx)
	if err != nil {
		result.Aborted = true
		result.Error = err.Error()
		logging.WarnWithContext(c.logger, "sweep could not list pending entries", "sweep_list_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `thermolog queue health` to inspect the database"),
		)
		return
	}

	for _, entry := range entries {
		if !c.step(ctx, entry, result) {
			break
		}
	}

	if result.Synced > 0 || c.compactPending.Load() {
		c.compact(ctx, result)
	}
}

// step delivers one entry and marks it synced. It reports false when the
// sweep must stop.
func (c *Coordinator) step(ctx context.Context, entry *queue.Entry, result *SweepResult) bool {
	if err := ctx.Err(); err != nil {
		c.abort(result, entry, err, "sweep cancelled", "sweep_cancelled")
		return false
	}
	result.Attempted++
	if err := c.deliver(ctx, entry); err != nil {
		c.abort(result, entry, err, "delivery failed; sweep aborted", "delivery_failed")
		return false
	}
	if err := c.store.MarkSynced(ctx, entry.ID); err != nil {
		// The remote side has the entry; leaving it pending means it is
		// delivered again next sweep under the same delivery key.
		c.abort(result, entry, err, "mark synced failed after delivery; sweep aborted", "mark_synced_failed")
		return false
	}
	result.Synced++
	c.logger.Debug("entry delivered", logging.EntryID(entry.ID))
	return true
}

func (c *Coordinator) deliver(ctx context.Context, entry *queue.Entry) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	start := c.now()
	err := c.deliverer.Deliver(reqCtx, remote.DeliveryFromEntry(entry))
	if err == nil {
		c.metrics.ObserveDelivery(c.now().Sub(start), "")
		return nil
	}
	c.metrics.ObserveDelivery(c.now().Sub(start), failureKind(err))
	return err
}

func (c *Coordinator) abort(result *SweepResult, entry *queue.Entry, err error, msg, eventType string) {
	result.Aborted = true
	result.FailedEntryID = entry.ID
	result.Error = err.Error()
	c.logger.Warn(msg,
		logging.EntryID(entry.ID),
		logging.Error(err),
		logging.String(logging.FieldEventType, eventType),
		logging.String("failure_kind", failureKind(err)),
		logging.String(logging.FieldErrorHint, failureHint(err)),
		logging.String(logging.FieldImpact, "this and later entries stay pending until the next sweep"),
	)
}

// Compact removes synced entries outside of a sweep. Only rows already marked
// synced are deleted, so it may overlap a running sweep.
func (c *Coordinator) Compact(ctx context.Context) (int64, error) {
	var result SweepResult
	c.compact(ctx, &result)
	if result.CompactError != "" {
		return 0, fmt.Errorf("compact: %s", result.CompactError)
	}
	return result.Compacted, nil
}

// compact deletes synced entries. Failures are recorded and retried on the
// next sweep; they never fail the sweep itself.
func (c *Coordinator) compact(ctx context.Context, result *SweepResult) {
	c.compactMu.Lock()
	defer c.compactMu.Unlock()
	removed, err := c.store.DeleteSynced(ctx)
	c.metrics.ObserveCompaction(removed, err)
	if err != nil {
		c.compactPending.Store(true)
		result.CompactError = err.Error()
		logging.WarnWithContext(c.logger, "compaction failed; will retry on next sweep", "compaction_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "synced entries remain on disk until the next sweep"),
		)
		return
	}
	c.compactPending.Store(false)
	result.Compacted += removed
	if removed > 0 {
		c.logger.Debug("compacted synced entries", logging.Int64("removed", removed))
	}
}

func failureKind(err error) string {
	var statusErr *remote.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.Permanent():
		return "rejected"
	case errors.As(err, &statusErr):
		return "server"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, queue.ErrStorageUnavailable):
		return "storage"
	default:
		return "transport"
	}
}

func failureHint(err error) string {
	switch failureKind(err) {
	case "rejected":
		return "the endpoint rejected this entry; inspect it with `thermolog queue list` and the endpoint logs"
	case "server":
		return "the endpoint is failing; check its health"
	case "timeout":
		return "raise remote.request_timeout or check endpoint latency"
	case "storage":
		return "run `thermolog queue health` to inspect the database"
	default:
		return "check network reachability of remote.endpoint"
	}
}
