// Package remote delivers queued log entries to the backing HTTP service.
//
// One entry is posted per request. Any response outside 2xx is reported as a
// *StatusError; transport failures are returned as-is. Callers decide what a
// failure means for the rest of a sweep.
package remote
