package config

import "strings"

// Sanitize returns a normalized copy of the config: strings are trimmed,
// level and format are lower-cased, and zero timeouts take their defaults.
// The original is not modified.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	r := &sanitized.Server.Redis
	r.Addr = strings.TrimSpace(r.Addr)
	r.ReadTimeout = orDefault(r.ReadTimeout, DefaultReadTimeout)
	r.WriteTimeout = orDefault(r.WriteTimeout, DefaultWriteTimeout)
	r.IdleTimeout = orDefault(r.IdleTimeout, DefaultIdleTimeout)

	sanitized.Server.Admin.Addr = strings.TrimSpace(sanitized.Server.Admin.Addr)

	if sanitized.Store.Shards == 0 {
		sanitized.Store.Shards = DefaultShards
	}

	sanitized.Log.Level = strings.ToLower(strings.TrimSpace(sanitized.Log.Level))
	sanitized.Log.Format = strings.ToLower(strings.TrimSpace(sanitized.Log.Format))
	if sanitized.Log.Level == "" {
		sanitized.Log.Level = DefaultLogLevel
	}
	switch sanitized.Log.Format {
	case "":
		sanitized.Log.Format = DefaultLogFormat
	case "console":
		sanitized.Log.Format = "text"
	}

	sanitized.Shutdown.Timeout = orDefault(sanitized.Shutdown.Timeout, DefaultShutdownTimeout)
	return &sanitized
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
