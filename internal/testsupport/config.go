package testsupport

import (
	"path/filepath"
	"testing"

	"thermolog/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Connectivity defaults to "always" with udev disabled so tests never touch
// the host network state.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Connectivity.Mode = config.ConnectivityAlways
	cfgVal.Connectivity.UdevEvents = false
	cfgVal.Connectivity.SysfsRoot = filepath.Join(base, "sys", "class", "net")
	cfgVal.Sync.SweepOnStart = false
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithRemoteEndpoint points delivery at the given URL.
func WithRemoteEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.Endpoint = endpoint
	}
}

// WithNtfyTopic enables notifications against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithConnectivityMode overrides the connectivity mode.
func WithConnectivityMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Connectivity.Mode = mode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
