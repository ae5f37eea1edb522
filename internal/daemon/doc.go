// Package daemon coordinates the long-running thermolog process.
//
// It wires configuration, the queue store, the connectivity observer, the
// sync coordinator, and the status surface into a single lifecycle guarded
// by a flock on the data directory so only one coordinator drains a given
// queue. The daemon also hosts the HTTP API, exposes queue maintenance
// helpers to the IPC layer, and owns the notification watcher that reports
// drained backlogs, stalled syncs, and storage failures.
//
// Keep orchestration here. Delivery ordering lives in syncer and the
// consumer-facing view lives in status.
package daemon
