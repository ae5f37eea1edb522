// Package notifications pushes queue events to ntfy.
//
// Only a few events are worth interrupting someone for: the offline backlog
// has been fully delivered, pending entries have stopped making progress
// while the host is online, or the queue database cannot be used. When no
// topic is configured the service is a no-op.
package notifications
