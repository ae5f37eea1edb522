// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. The
// wire types reuse queue and syncer models directly so the CLI renders the
// same shapes the HTTP API returns.
package ipc
