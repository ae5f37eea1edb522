package testsupport

import (
	"context"
	"errors"
	"sync"

	"thermolog/internal/remote"
)

// ErrRejected is returned by RecordingDeliverer for subjects it was told to refuse.
var ErrRejected = errors.New("remote rejected entry")

// RecordingDeliverer is an in-memory remote.Deliverer that remembers what it
// accepted. Gate and Started let tests hold a delivery in flight.
type RecordingDeliverer struct {
	mu        sync.Mutex
	delivered []remote.Delivery
	attempts  []remote.Delivery
	reject    map[string]struct{}

	// Started receives the entry id of every attempt before it proceeds.
	Started chan int64
	// Gate, when non-nil, blocks each attempt until it is closed or receives.
	Gate chan struct{}
}

// NewRecordingDeliverer returns a deliverer that accepts everything.
func NewRecordingDeliverer() *RecordingDeliverer {
	return &RecordingDeliverer{reject: make(map[string]struct{})}
}

// Reject makes subsequent deliveries for subject fail with ErrRejected.
func (d *RecordingDeliverer) Reject(subject string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reject[subject] = struct{}{}
}

// Accept clears every rejection.
func (d *RecordingDeliverer) Accept() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reject = make(map[string]struct{})
}

func (d *RecordingDeliverer) Deliver(ctx context.Context, delivery remote.Delivery) error {
	d.mu.Lock()
	d.attempts = append(d.attempts, delivery)
	_, rejected := d.reject[delivery.Record.SubjectID]
	started, gate := d.Started, d.Gate
	d.mu.Unlock()

	if started != nil {
		select {
		case started <- delivery.EntryID:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if rejected {
		return ErrRejected
	}

	d.mu.Lock()
	d.delivered = append(d.delivered, delivery)
	d.mu.Unlock()
	return nil
}

// Delivered returns accepted deliveries in arrival order.
func (d *RecordingDeliverer) Delivered() []remote.Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]remote.Delivery(nil), d.delivered...)
}

// Attempts returns every delivery attempt, accepted or not.
func (d *RecordingDeliverer) Attempts() []remote.Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]remote.Delivery(nil), d.attempts...)
}
