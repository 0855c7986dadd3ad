package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kvmesh-go/internal/infra/confloader"
	"github.com/yndnr/kvmesh-go/internal/server/config"
)

// loadConfig builds the server configuration from defaults, the config
// file, .env and environment variables, and finally explicit flags.
func loadConfig(c *cli.Context) (*config.ServerConfig, error) {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	return buildConfig(c.String("config"), c.String("dotenv"), overrides)
}

func buildConfig(configFile, dotenv string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{
		confloader.WithKnownKeys(confloader.KeysOf(cfg)...),
	}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if dotenv != "" {
		opts = append(opts, confloader.WithDotEnv(dotenv))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("apply flags: %w", err)
		}
	}

	cfg = config.Sanitize(cfg)
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func describeConfig(cfg *config.ServerConfig) string {
	var b strings.Builder
	r := cfg.Server.Redis
	fmt.Fprintf(&b, "server.redis.addr: %s\n", r.Addr)
	fmt.Fprintf(&b, "server.redis.timeouts: read=%s write=%s idle=%s\n", r.ReadTimeout, r.WriteTimeout, r.IdleTimeout)
	fmt.Fprintf(&b, "server.redis.rate_limit: %d\n", r.RateLimit)
	fmt.Fprintf(&b, "server.redis.max_clients: %d\n", r.MaxClients)
	admin := cfg.Server.Admin.Addr
	if admin == "" {
		admin = "(disabled)"
	}
	fmt.Fprintf(&b, "server.admin.addr: %s\n", admin)
	fmt.Fprintf(&b, "store.shards: %d\n", cfg.Store.Shards)
	fmt.Fprintf(&b, "store.janitor: interval=%s budget=%d\n", cfg.Store.JanitorInterval, cfg.Store.JanitorBudget)
	fmt.Fprintf(&b, "log: level=%s format=%s\n", cfg.Log.Level, cfg.Log.Format)
	fmt.Fprintf(&b, "shutdown.timeout: %s\n", cfg.Shutdown.Timeout)
	return b.String()
}
