package ipc

import (
	"thermolog/internal/queue"
	"thermolog/internal/syncer"
)

const serviceName = "Thermolog"

// StopRequest asks the daemon process to exit.
type StopRequest struct{}

// StopResponse acknowledges the shutdown request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse combines daemon runtime details with the status surface snapshot.
type StatusResponse struct {
	Running          bool                `json:"running"`
	PID              int                 `json:"pid"`
	Online           bool                `json:"online"`
	PendingCount     int                 `json:"pending_count"`
	PendingKnown     bool                `json:"pending_known"`
	Syncing          bool                `json:"syncing"`
	LastSweep        *syncer.SweepResult `json:"last_sweep,omitempty"`
	QueueDBPath      string              `json:"queue_db_path"`
	LockPath         string              `json:"lock_path"`
	Endpoint         string              `json:"endpoint,omitempty"`
	RemoteConfigured bool                `json:"remote_configured"`
	ConnectivityMode string              `json:"connectivity_mode"`
	APIAddress       string              `json:"api_address,omitempty"`
}

// RecordRequest stores one log entry.
type RecordRequest struct {
	Record queue.LogRecord `json:"record"`
}

// RecordResponse returns the stored entry.
type RecordResponse struct {
	Entry queue.Entry `json:"entry"`
}

// ListEntriesRequest filters entries by sync state name ("pending", "synced").
type ListEntriesRequest struct {
	States []string `json:"states"`
}

// ListEntriesResponse contains entries in id order.
type ListEntriesResponse struct {
	Entries []queue.Entry `json:"entries"`
}

// ListPendingRequest fetches unsynced entries.
type ListPendingRequest struct{}

// SyncNowRequest triggers a sweep.
type SyncNowRequest struct{}

// SyncNowResponse reports the sweep outcome and the refreshed pending count.
type SyncNowResponse struct {
	Result       syncer.SweepResult `json:"result"`
	PendingCount int                `json:"pending_count"`
	PendingKnown bool               `json:"pending_known"`
}

// CompactRequest removes synced entries.
type CompactRequest struct{}

// CompactResponse reports number of removed entries.
type CompactResponse struct {
	Removed int64 `json:"removed"`
}

// DatabaseHealthRequest fetches database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse mirrors queue.DatabaseHealth.
type DatabaseHealthResponse struct {
	Health queue.DatabaseHealth `json:"health"`
}

// TestNotificationRequest sends a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
