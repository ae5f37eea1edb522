package connectivity

import (
	"log/slog"

	"thermolog/internal/config"
)

// FromConfig returns the observer selected by cfg.Mode. Link monitors must be
// started (or refreshed once) before Online reflects the host.
func FromConfig(cfg config.Connectivity, logger *slog.Logger) Observer {
	switch cfg.Mode {
	case config.ConnectivityAlways:
		return NewManual(true)
	case config.ConnectivityNever:
		return NewManual(false)
	default:
		return NewLinkMonitor(cfg, logger)
	}
}
