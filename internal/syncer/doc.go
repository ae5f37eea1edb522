// Package syncer moves queued entries to the remote endpoint.
//
// A Coordinator runs at most one sweep at a time. A sweep lists pending
// entries, delivers them one by one in ascending id order, marks each as
// synced after it is acknowledged, and stops at the first failure so a later
// entry is never delivered ahead of an earlier one. Synced entries are then
// compacted away. Sweep failures are reported through SweepResult and logs,
// never as errors, and the affected entries simply stay pending.
package syncer
