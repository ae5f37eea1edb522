// Command thermolog records temperature log entries into a durable local
// queue and syncs them to the remote endpoint when the host is online.
//
// Entries can be recorded with or without the background daemon running.
// The daemon watches connectivity, drains the queue when the link comes up,
// and exposes status over a Unix socket and an optional HTTP API.
package main
