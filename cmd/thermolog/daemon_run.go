package main

import (
	"context"

	"thermolog/internal/config"
	"thermolog/internal/daemonrun"
)

// runDaemon is a seam so tests can exercise command wiring without blocking.
var runDaemon = func(ctx context.Context, cfg *config.Config, logLevel, socket string) error {
	return daemonrun.Run(ctx, cfg, daemonrun.Options{LogLevel: logLevel, SocketPath: socket})
}
