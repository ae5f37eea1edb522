package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"thermolog/internal/config"
	"thermolog/internal/logging"
	"thermolog/internal/notifications"
	"thermolog/internal/status"
)

const notifyTimeout = 15 * time.Second

// snapshotSource is the subscription side of status.Surface.
type snapshotSource interface {
	Subscribe(fn func(status.Snapshot)) func()
}

// watcher turns status snapshots into notifications: one when a sweep drains
// the backlog, one when pending entries stop moving while online, and one when
// the pending count becomes unreadable.
type watcher struct {
	notifier   notifications.Service
	logger     *slog.Logger
	stallAfter time.Duration
	now        func() time.Time
	send       func(event notifications.Event, payload notifications.Payload)

	mu            sync.Mutex
	unsubscribe   func()
	lastSweep     time.Time
	lastPending   int
	stallSince    time.Time
	stallNotified bool
	storageDown   bool
}

func newWatcher(cfg config.Notifications, notifier notifications.Service, logger *slog.Logger) *watcher {
	w := &watcher{
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "notifier"),
		stallAfter: time.Duration(cfg.StallAfter) * time.Second,
		now:        time.Now,
	}
	w.send = w.publishAsync
	return w
}

func (w *watcher) attach(src snapshotSource) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unsubscribe != nil {
		return
	}
	w.unsubscribe = src.Subscribe(w.observe)
}

func (w *watcher) detach() {
	w.mu.Lock()
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	w.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (w *watcher) observe(snap status.Snapshot) {
	w.mu.Lock()
	var events []pendingNotification
	events = append(events, w.checkStorage(snap)...)
	events = append(events, w.checkDrained(snap)...)
	events = append(events, w.checkStall(snap)...)
	w.mu.Unlock()

	for _, evt := range events {
		w.send(evt.event, evt.payload)
	}
}

type pendingNotification struct {
	event   notifications.Event
	payload notifications.Payload
}

func (w *watcher) checkStorage(snap status.Snapshot) []pendingNotification {
	if snap.PendingKnown {
		w.storageDown = false
		return nil
	}
	if w.storageDown {
		return nil
	}
	w.storageDown = true
	return []pendingNotification{{
		event:   notifications.EventStorageUnavailable,
		payload: notifications.Payload{"error": "pending count could not be read"},
	}}
}

func (w *watcher) checkDrained(snap status.Snapshot) []pendingNotification {
	last := snap.LastSweep
	if last == nil || last.Skipped || !last.FinishedAt.After(w.lastSweep) {
		return nil
	}
	w.lastSweep = last.FinishedAt
	if !last.Drained() || last.Synced == 0 {
		return nil
	}
	if snap.PendingKnown && snap.PendingCount > 0 {
		return nil
	}
	return []pendingNotification{{
		event:   notifications.EventBacklogDrained,
		payload: notifications.Payload{"delivered": last.Synced},
	}}
}

func (w *watcher) checkStall(snap status.Snapshot) []pendingNotification {
	if w.stallAfter <= 0 {
		return nil
	}
	now := w.now()
	progressed := snap.PendingKnown && snap.PendingCount < w.lastPending
	if snap.PendingKnown {
		w.lastPending = snap.PendingCount
	}
	if !snap.Online || !snap.PendingKnown || snap.PendingCount == 0 || progressed {
		w.stallSince = time.Time{}
		w.stallNotified = false
		if snap.Online && snap.PendingKnown && snap.PendingCount > 0 {
			w.stallSince = now
		}
		return nil
	}
	if w.stallSince.IsZero() {
		w.stallSince = now
		return nil
	}
	stalled := now.Sub(w.stallSince)
	if w.stallNotified || stalled < w.stallAfter {
		return nil
	}
	w.stallNotified = true
	return []pendingNotification{{
		event: notifications.EventSyncStalled,
		payload: notifications.Payload{
			"pending": snap.PendingCount,
			"since":   stalled,
		},
	}}
}

func (w *watcher) publishAsync(event notifications.Event, payload notifications.Payload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := w.notifier.Publish(ctx, event, payload); err != nil {
			w.logger.Warn("notification failed",
				logging.String(logging.FieldEventType, "notification_failed"),
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "notification dropped"),
			)
		}
	}()
}
