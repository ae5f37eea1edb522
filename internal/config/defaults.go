package config

const (
	defaultDataDir                  = "~/.local/share/thermolog"
	defaultLogDir                   = "~/.local/share/thermolog/logs"
	defaultAPIBind                  = "127.0.0.1:7611"
	defaultRemoteRequestTimeout     = 15
	defaultRemoteUserAgent          = "thermolog/dev"
	defaultSyncRefreshInterval      = 30
	defaultConnectivityMode         = ConnectivityLink
	defaultConnectivitySysfsRoot    = "/sys/class/net"
	defaultConnectivityPollInterval = 10
	defaultNotifyRequestTimeout     = 10
	defaultNotifyStallAfter         = 1800
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30
	defaultLogMaxSizeMB             = 20
	defaultLogMaxBackups            = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Remote: Remote{
			RequestTimeout: defaultRemoteRequestTimeout,
			UserAgent:      defaultRemoteUserAgent,
		},
		Sync: Sync{
			RefreshInterval: defaultSyncRefreshInterval,
			SweepOnStart:    true,
		},
		Connectivity: Connectivity{
			Mode:         defaultConnectivityMode,
			SysfsRoot:    defaultConnectivitySysfsRoot,
			PollInterval: defaultConnectivityPollInterval,
			UdevEvents:   true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			StallAfter:     defaultNotifyStallAfter,
			Drained:        true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
		},
	}
}
