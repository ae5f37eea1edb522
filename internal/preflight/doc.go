// Package preflight provides readiness checks for the filesystem paths and
// settings thermolog depends on.
//
// The daemon runs RunAll at startup and logs failures; the CLI "status"
// command renders the same results. No check contacts the remote endpoint.
package preflight
