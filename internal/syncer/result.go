package syncer

import "time"

// Skip reasons reported when a sweep does not run.
const (
	SkipOffline       = "offline"
	SkipInProgress    = "sweep_in_progress"
	SkipNotConfigured = "remote_not_configured"
)

// SweepResult summarises one call to Sweep.
type SweepResult struct {
	Skipped    bool      `json:"skipped"`
	SkipReason string    `json:"skip_reason,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Pending    int       `json:"pending"`
	Attempted  int       `json:"attempted"`
	Synced     int       `json:"synced"`
	Aborted    bool      `json:"aborted"`
	// FailedEntryID is the entry whose delivery or bookkeeping aborted the sweep.
	FailedEntryID int64  `json:"failed_entry_id,omitempty"`
	Error         string `json:"error,omitempty"`
	Compacted     int64  `json:"compacted"`
	CompactError  string `json:"compact_error,omitempty"`
}

// Duration is the wall time of the sweep.
func (r SweepResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Drained reports whether the sweep ran and left nothing it attempted undelivered.
func (r SweepResult) Drained() bool {
	return !r.Skipped && !r.Aborted && r.Error == ""
}
