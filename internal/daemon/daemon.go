package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"thermolog/internal/config"
	"thermolog/internal/connectivity"
	"thermolog/internal/logging"
	"thermolog/internal/metrics"
	"thermolog/internal/notifications"
	"thermolog/internal/queue"
	"thermolog/internal/remote"
	"thermolog/internal/status"
	"thermolog/internal/syncer"
)

// ErrLocked is returned when another coordinator already holds the data directory lock.
var ErrLocked = errors.New("another thermolog coordinator is already running for this data directory")

// Dependencies are the collaborators the daemon does not construct itself.
// A nil Deliverer leaves entries queued; a nil Observer counts as always online.
type Dependencies struct {
	Observer  connectivity.Observer
	Deliverer remote.Deliverer
	Notifier  notifications.Service
	Metrics   *metrics.Metrics
}

// lifecycle is implemented by observers that watch the host, such as
// connectivity.LinkMonitor.
type lifecycle interface {
	Start(ctx context.Context) error
	Stop()
}

// Daemon owns the queue store, coordinator, status surface, and host surfaces.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	observer  connectivity.Observer
	deliverer remote.Deliverer
	notifier  notifications.Service
	metrics   *metrics.Metrics

	coordinator *syncer.Coordinator
	surface     *status.Surface
	api         *apiServer
	watcher     *watcher

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	ctxMu sync.Mutex
	ctx   context.Context

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool            `json:"running"`
	PID              int             `json:"pid"`
	Queue            status.Snapshot `json:"queue"`
	QueueDBPath      string          `json:"queue_db_path"`
	LockFilePath     string          `json:"lock_file_path"`
	Endpoint         string          `json:"endpoint,omitempty"`
	RemoteConfigured bool            `json:"remote_configured"`
	ConnectivityMode string          `json:"connectivity_mode"`
	APIAddress       string          `json:"api_address,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, deps Dependencies) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		observer:  deps.Observer,
		deliverer: deps.Deliverer,
		notifier:  notifier,
		metrics:   deps.Metrics,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
		shutdown:  make(chan struct{}),
	}

	d.coordinator = syncer.New(store, deps.Deliverer, deps.Observer,
		syncer.WithLogger(logger),
		syncer.WithRequestTimeout(cfg.RequestTimeout()),
		syncer.WithMetrics(deps.Metrics),
	)
	d.surface = status.New(deps.Observer, d.coordinator,
		status.WithLogger(logger),
		status.WithRefreshInterval(cfg.RefreshInterval()),
		status.WithMetrics(deps.Metrics),
	)
	d.watcher = newWatcher(cfg.Notifications, notifier, logger)

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, fmt.Errorf("configure api server: %w", err)
	}
	d.api = api
	return d, nil
}

// AcquireLock takes the coordinator lock at path without blocking.
// Callers must Unlock the returned lock when done.
func AcquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return lock, nil
}

// Start acquires the lock, starts the observer and status surface, and
// brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}

	runCtx, cancel := context.WithCancel(ctx)
	if lc, ok := d.observer.(lifecycle); ok {
		if err := lc.Start(runCtx); err != nil {
			logging.WarnWithContext(d.logger, "connectivity observer failed to start", "observer_start_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check connectivity.sysfs_root or set connectivity.mode"),
			)
		}
	}

	d.watcher.attach(d.surface)
	if err := d.surface.Start(runCtx); err != nil {
		d.watcher.detach()
		d.stopObserver()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start status surface: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.surface.Stop()
		d.watcher.detach()
		d.stopObserver()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.ctxMu.Lock()
	d.ctx = runCtx
	d.ctxMu.Unlock()
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("thermolog daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("queue_db", d.store.Path()),
		logging.Bool("online", d.surface.Snapshot().Online),
		logging.Bool("remote_configured", d.deliverer != nil),
	)

	if d.cfg.Sync.SweepOnStart {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.surface.SyncNow(runCtx)
		}()
	}
	return nil
}

func (d *Daemon) stopObserver() {
	if lc, ok := d.observer.(lifecycle); ok {
		lc.Stop()
	}
}

// Stop stops background work and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.surface.Stop()
	d.watcher.detach()
	d.stopObserver()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctxMu.Lock()
	d.ctx = nil
	d.ctxMu.Unlock()
	d.running.Store(false)
	d.logger.Info("thermolog daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// RequestShutdown asks the hosting process to exit. It is safe to call more than once.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}

// Done is closed once RequestShutdown has been called.
func (d *Daemon) Done() <-chan struct{} {
	return d.shutdown
}

// runContext returns the daemon context while running so sweeps outlive the
// request that triggered them.
func (d *Daemon) runContext(fallback context.Context) context.Context {
	d.ctxMu.Lock()
	defer d.ctxMu.Unlock()
	if d.ctx != nil {
		return d.ctx
	}
	return fallback
}

// Record stores a log entry. Delivery happens on the next sweep.
func (d *Daemon) Record(ctx context.Context, record queue.LogRecord) (*queue.Entry, error) {
	entry, err := d.store.Enqueue(ctx, record)
	if err != nil {
		return nil, err
	}
	d.metrics.IncEnqueued()
	d.logger.Info("entry queued",
		logging.String(logging.FieldEventType, "entry_queued"),
		logging.EntryID(entry.ID),
		logging.String("subject_id", entry.Record.SubjectID),
	)
	d.surface.Refresh(ctx)
	return entry, nil
}

// ListEntries returns entries filtered by optional sync states.
func (d *Daemon) ListEntries(ctx context.Context, states ...queue.SyncState) ([]*queue.Entry, error) {
	return d.store.List(ctx, states...)
}

// ListPending returns unsynced entries in creation order.
func (d *Daemon) ListPending(ctx context.Context) ([]*queue.Entry, error) {
	return d.store.ListPending(ctx)
}

// SyncNow runs a sweep through the status surface.
func (d *Daemon) SyncNow(ctx context.Context) syncer.SweepResult {
	return d.surface.SyncNow(d.runContext(ctx))
}

// Compact removes synced entries outside a sweep.
func (d *Daemon) Compact(ctx context.Context) (int64, error) {
	removed, err := d.coordinator.Compact(ctx)
	if err != nil {
		return 0, err
	}
	d.surface.Refresh(ctx)
	return removed, nil
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Snapshot returns the status surface view without touching storage.
func (d *Daemon) Snapshot() status.Snapshot {
	return d.surface.Snapshot()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	snap := d.surface.Snapshot()
	if !d.running.Load() {
		snap = d.surface.Refresh(ctx)
	}
	st := Status{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		Queue:            snap,
		QueueDBPath:      d.store.Path(),
		LockFilePath:     d.lockPath,
		Endpoint:         d.cfg.Remote.Endpoint,
		RemoteConfigured: d.deliverer != nil,
		ConnectivityMode: d.cfg.Connectivity.Mode,
	}
	if d.api != nil {
		st.APIAddress = d.api.address()
	}
	return st
}
