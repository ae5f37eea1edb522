// Package config loads, normalizes, and validates thermolog configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// THERMOLOG_REMOTE_ENDPOINT. The Config type centralizes every knob the daemon
// and CLI need: where the durable queue lives, which remote endpoint receives
// synced entries, how connectivity is observed, and how often the pending
// count is refreshed.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
