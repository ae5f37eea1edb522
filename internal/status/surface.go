package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"thermolog/internal/connectivity"
	"thermolog/internal/logging"
	"thermolog/internal/metrics"
	"thermolog/internal/syncer"
)

// Coordinator is the sweep surface consumed here; *syncer.Coordinator satisfies it.
type Coordinator interface {
	Sweep(ctx context.Context) syncer.SweepResult
	Syncing() bool
	PendingCount(ctx context.Context) (int, error)
	LastResult() (syncer.SweepResult, bool)
}

// Snapshot is the consumer-facing view of the queue.
type Snapshot struct {
	Online       bool                `json:"online"`
	PendingCount int                 `json:"pending_count"`
	PendingKnown bool                `json:"pending_known"`
	Syncing      bool                `json:"syncing"`
	LastSweep    *syncer.SweepResult `json:"last_sweep,omitempty"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

const defaultRefreshInterval = 30 * time.Second

// Surface keeps a Snapshot current and exposes the manual sync trigger.
type Surface struct {
	observer connectivity.Observer
	coord    Coordinator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	now      func() time.Time

	// refreshMu orders Refresh calls so a slow, older count read can never
	// overwrite or publish after a newer one.
	refreshMu sync.Mutex

	mu           sync.Mutex
	pending      int
	pendingKnown bool
	updatedAt    time.Time
	listeners    map[uint64]func(Snapshot)
	nextListener uint64

	lifecycle   sync.Mutex
	running     bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// Option customises a Surface.
type Option func(*Surface)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Surface) { s.logger = logger }
}

// WithRefreshInterval sets the periodic pending-count refresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Surface) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Surface) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Surface) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a surface. Call Start to begin reacting to transitions.
func New(observer connectivity.Observer, coord Coordinator, opts ...Option) *Surface {
	s := &Surface{
		observer:  observer,
		coord:     coord,
		interval:  defaultRefreshInterval,
		now:       time.Now,
		listeners: make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "status")
	return s
}

// Start refreshes the pending count, subscribes to connectivity transitions,
// and starts the refresh timer.
func (s *Surface) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.ctx = runCtx
	s.cancel = cancel
	s.running = true

	s.metrics.SetOnline(s.online())
	s.Refresh(runCtx)

	if s.observer != nil {
		s.unsubscribe = s.observer.Subscribe(s.handleTransition)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refreshLoop(runCtx)
	}()
	return nil
}

// Stop unsubscribes from transitions and waits for background work.
func (s *Surface) Stop() {
	s.lifecycle.Lock()
	if !s.running {
		s.lifecycle.Unlock()
		return
	}
	s.running = false
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	cancel := s.cancel
	s.lifecycle.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *Surface) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *Surface) handleTransition(event connectivity.Event) {
	s.metrics.SetOnline(event.Online)
	s.logger.Info("connectivity transition",
		logging.String(logging.FieldEventType, "connectivity_transition"),
		logging.Bool("online", event.Online),
		logging.String("source", event.Source),
	)
	if !event.Online {
		s.publish()
		return
	}

	s.lifecycle.Lock()
	if !s.running {
		s.lifecycle.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.lifecycle.Unlock()

	go func() {
		defer s.wg.Done()
		s.SyncNow(ctx)
	}()
}

// SyncNow runs a sweep and refreshes the pending count afterwards. It is a
// harmless no-op while offline or while another sweep is running.
func (s *Surface) SyncNow(ctx context.Context) syncer.SweepResult {
	s.publish()
	result := s.coord.Sweep(ctx)
	s.Refresh(ctx)
	return result
}

// Refresh re-reads the pending count and notifies listeners. Listeners must
// not call Refresh synchronously.
func (s *Surface) Refresh(ctx context.Context) Snapshot {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	count, err := s.coord.PendingCount(ctx)
	s.mu.Lock()
	if err != nil {
		s.pendingKnown = false
	} else {
		s.pending = count
		s.pendingKnown = true
	}
	s.updatedAt = s.now()
	s.mu.Unlock()

	if err != nil {
		logging.WarnWithContext(s.logger, "pending count unavailable", "pending_count_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `thermolog queue health` to inspect the database"),
			logging.String(logging.FieldImpact, "pending count shown as unknown"),
		)
	}
	return s.publish()
}

// Snapshot returns the current state without touching storage.
func (s *Surface) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		PendingCount: s.pending,
		PendingKnown: s.pendingKnown,
		UpdatedAt:    s.updatedAt,
	}
	s.mu.Unlock()

	snap.Online = s.online()
	snap.Syncing = s.coord.Syncing()
	if last, ok := s.coord.LastResult(); ok {
		snap.LastSweep = &last
	}
	return snap
}

// Subscribe registers fn for every published snapshot and returns a function
// that removes it.
func (s *Surface) Subscribe(fn func(Snapshot)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextListener++
	id := s.nextListener
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Surface) publish() Snapshot {
	snap := s.Snapshot()
	s.mu.Lock()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

func (s *Surface) online() bool {
	return s.observer == nil || s.observer.Online()
}
