// Package status combines connectivity and coordinator state into a single
// snapshot for the CLI, the HTTP API, and notifications.
//
// The Surface refreshes the pending count when it starts, after every sweep
// it triggers, and on a fixed timer. Going online starts a sweep; going
// offline only flips the flag. A storage failure while counting marks the
// pending count as unknown instead of failing the caller.
package status
