// Package logs reads the daemon's rotating JSON log file for the CLI.
//
// Last returns the final lines of the active file and the offset to resume
// from; Follow polls from that offset and restarts at the beginning when
// lumberjack rotates the file underneath it. Filter narrows lines by entry id,
// event type, or minimum level.
package logs
