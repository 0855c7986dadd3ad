package config

import "time"

// ServerConfig is the root configuration for kvmesh-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Store    StoreSection    `koanf:"store"`
	Log      LogSection      `koanf:"log"`
	Shutdown ShutdownSection `koanf:"shutdown"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	Redis RedisConfig `koanf:"redis"`
	Admin AdminConfig `koanf:"admin"`
}

// RedisConfig configures the RESP listener.
type RedisConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
	// RateLimit is commands per second per client IP; 0 disables it.
	RateLimit int `koanf:"rate_limit"`
	// MaxClients caps concurrent connections; 0 means unlimited.
	MaxClients int `koanf:"max_clients"`
}

// AdminConfig configures the HTTP endpoint serving /metrics, /health and
// /ready. An empty Addr disables it.
type AdminConfig struct {
	Addr string `koanf:"addr"`
}

// StoreSection configures the keyspace.
type StoreSection struct {
	// Shards must be a power of two.
	Shards int `koanf:"shards"`
	// JanitorInterval is the expiry sweep period; 0 disables the janitor.
	JanitorInterval time.Duration `koanf:"janitor_interval"`
	// JanitorBudget caps removals per sweep; 0 means unlimited.
	JanitorBudget int `koanf:"janitor_budget"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ShutdownSection configures graceful shutdown.
type ShutdownSection struct {
	Timeout time.Duration `koanf:"timeout"`
}
