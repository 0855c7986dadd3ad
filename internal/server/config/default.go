package config

import "time"

// Default configuration values.
const (
	DefaultRedisAddr    = "127.0.0.1:6378"
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 5 * time.Minute
	DefaultAdminAddr    = "127.0.0.1:6380"

	DefaultShards          = 16
	DefaultJanitorInterval = 100 * time.Millisecond
	DefaultJanitorBudget   = 1000

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultShutdownTimeout = 10 * time.Second
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Redis: RedisConfig{
				Addr:         DefaultRedisAddr,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
				IdleTimeout:  DefaultIdleTimeout,
			},
			Admin: AdminConfig{
				Addr: DefaultAdminAddr,
			},
		},
		Store: StoreSection{
			Shards:          DefaultShards,
			JanitorInterval: DefaultJanitorInterval,
			JanitorBudget:   DefaultJanitorBudget,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Shutdown: ShutdownSection{
			Timeout: DefaultShutdownTimeout,
		},
	}
}
