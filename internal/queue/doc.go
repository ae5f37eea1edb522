// Package queue persists temperature log entries in SQLite until the remote
// endpoint has acknowledged them.
//
// Every entry is written as pending before any delivery is attempted, so a
// crash or restart between capture and upload never loses a record. Entries
// move from pending to synced exactly once and synced entries are removed in
// bulk by DeleteSynced. Identifiers come from an AUTOINCREMENT key and are
// never reused, which makes id order equal to creation order.
//
// The schema version lives in PRAGMA user_version; opening a
// database written with a different version fails with ErrSchemaMismatch.
// Bump schemaVersion in schema.go whenever schema.sql changes.
package queue
