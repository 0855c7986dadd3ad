package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

// Verify validates the configuration. All problems are reported together.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyStore(&cfg.Store),
		verifyLog(&cfg.Log),
		verifyShutdown(&cfg.Shutdown),
	)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error

	if err := verifyAddr("server.redis.addr", cfg.Redis.Addr); err != nil {
		errs = append(errs, err)
	}
	if cfg.Admin.Addr != "" {
		if err := verifyAddr("server.admin.addr", cfg.Admin.Addr); err != nil {
			errs = append(errs, err)
		}
		if cfg.Admin.Addr == cfg.Redis.Addr && !strings.HasSuffix(cfg.Admin.Addr, ":0") {
			errs = append(errs, errors.New("server.admin.addr must differ from server.redis.addr"))
		}
	}

	if cfg.Redis.ReadTimeout < 0 || cfg.Redis.WriteTimeout < 0 || cfg.Redis.IdleTimeout < 0 {
		errs = append(errs, errors.New("server.redis timeouts must not be negative"))
	}
	if cfg.Redis.RateLimit < 0 {
		errs = append(errs, errors.New("server.redis.rate_limit must not be negative"))
	}
	if cfg.Redis.MaxClients < 0 {
		errs = append(errs, errors.New("server.redis.max_clients must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyAddr(key, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", key)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func verifyStore(cfg *StoreSection) error {
	var errs []error
	if cfg.Shards <= 0 || cfg.Shards&(cfg.Shards-1) != 0 {
		errs = append(errs, fmt.Errorf("store.shards must be a positive power of two, got %d", cfg.Shards))
	}
	if cfg.JanitorInterval < 0 {
		errs = append(errs, errors.New("store.janitor_interval must not be negative"))
	}
	if cfg.JanitorBudget < 0 {
		errs = append(errs, errors.New("store.janitor_budget must not be negative"))
	}
	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Format)
	}
}

func verifyShutdown(cfg *ShutdownSection) error {
	if cfg.Timeout <= 0 {
		return errors.New("shutdown.timeout must be positive")
	}
	return nil
}
