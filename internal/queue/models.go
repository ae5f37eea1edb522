package queue

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// SyncState is the delivery status of an entry. The numeric values are the
// stored representation and the ordering key of the sync_state index.
type SyncState int

const (
	SyncPending SyncState = 0
	SyncSynced  SyncState = 1
)

func (s SyncState) String() string {
	switch s {
	case SyncPending:
		return "pending"
	case SyncSynced:
		return "synced"
	default:
		return fmt.Sprintf("sync_state(%d)", int(s))
	}
}

func (s SyncState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SyncState) UnmarshalText(text []byte) error {
	parsed, ok := ParseSyncState(string(text))
	if !ok {
		return fmt.Errorf("unknown sync state %q", text)
	}
	*s = parsed
	return nil
}

// ParseSyncState converts a CLI or API value into a SyncState.
func ParseSyncState(value string) (SyncState, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pending", "0":
		return SyncPending, true
	case "synced", "1":
		return SyncSynced, true
	default:
		return 0, false
	}
}

// LogRecord is a single temperature observation as captured by the operator.
type LogRecord struct {
	SubjectID string    `json:"subject_id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Status    string    `json:"status,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// Validate reports whether the record carries enough information to be
// delivered later.
func (r LogRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.SubjectID) == "":
		return fmt.Errorf("%w: subject id is required", ErrInvalidRecord)
	case strings.TrimSpace(r.Actor) == "":
		return fmt.Errorf("%w: actor is required", ErrInvalidRecord)
	case r.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp is required", ErrInvalidRecord)
	case math.IsNaN(r.Value) || math.IsInf(r.Value, 0):
		return fmt.Errorf("%w: value must be finite", ErrInvalidRecord)
	}
	return nil
}

// normalized returns a copy with trimmed, NFC-normalised text fields and a
// UTC timestamp so identical input always serialises to identical bytes.
func (r LogRecord) normalized() LogRecord {
	clean := func(v string) string { return norm.NFC.String(strings.TrimSpace(v)) }
	r.SubjectID = clean(r.SubjectID)
	r.Actor = clean(r.Actor)
	r.Status = clean(r.Status)
	r.Note = clean(r.Note)
	r.Timestamp = r.Timestamp.UTC()
	return r
}

// Entry is a queued record plus its bookkeeping.
type Entry struct {
	ID          int64      `json:"id"`
	Record      LogRecord  `json:"record"`
	DeliveryKey string     `json:"delivery_key"`
	CreatedAt   time.Time  `json:"created_at"`
	SyncState   SyncState  `json:"sync_state"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

// Pending reports whether the entry still awaits delivery.
func (e *Entry) Pending() bool {
	return e != nil && e.SyncState == SyncPending
}

// DatabaseHealth describes diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    int    `json:"schema_version"`
	ExpectedVersion  int    `json:"expected_version"`
	TableExists      bool   `json:"table_exists"`
	IndexExists      bool   `json:"index_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalEntries     int    `json:"total_entries"`
	PendingEntries   int    `json:"pending_entries"`
	Error            string `json:"error,omitempty"`
}
