package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/kvmesh-go/internal/infra/confloader"
	"github.com/yndnr/kvmesh-go/internal/infra/shutdown"
	"github.com/yndnr/kvmesh-go/internal/server/config"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver"
	"github.com/yndnr/kvmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/kvmesh-go/internal/server/redisserver"
	"github.com/yndnr/kvmesh-go/internal/storage/memory"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
)

// run starts every component and blocks until a termination signal arrives
// or ctx is canceled.
func run(ctx context.Context, cfg *config.ServerConfig, configFile string) error {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	slogger := logger.Slog(log)
	slog.SetDefault(slogger)

	bi := buildinfo.Get()
	log.Info("starting kvmesh-server",
		"version", bi.Version,
		"commit", bi.Commit,
		"config", configFile)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := memory.New(memory.WithShards(cfg.Store.Shards))
	metrics := metric.NewRegistry()
	metrics.MustRegister(metric.NewStoreCollector(store))

	janitorDone := make(chan struct{})
	if cfg.Store.JanitorInterval > 0 {
		j := memory.NewJanitor(store, cfg.Store.JanitorInterval, cfg.Store.JanitorBudget, slogger.With("component", "janitor"))
		go func() {
			defer close(janitorDone)
			j.Run(ctx)
		}()
	} else {
		close(janitorDone)
	}

	redisSrv := redisserver.New(redisConfig(cfg), store, slogger.With("component", "redis"),
		redisserver.WithMetrics(metrics))
	if err := redisSrv.Start(ctx); err != nil {
		return fmt.Errorf("start redis server: %w", err)
	}

	var adminSrv *httpserver.Server
	if cfg.Server.Admin.Addr != "" {
		started := time.Now()
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Status: func() handler.Status {
				st := store.Stats()
				return handler.Status{
					Version:       bi.Version,
					Commit:        bi.Commit,
					UptimeSeconds: int64(time.Since(started).Seconds()),
					Connections:   redisSrv.NumConns(),
					Keys:          st.Keys,
					ExpiredLazy:   st.LazyExpired,
					ExpiredActive: st.ActiveExpired,
				}
			},
			Ready: func() error {
				if !redisSrv.Running() {
					return errors.New("redis listener not running")
				}
				return nil
			},
			Metrics:   metrics.Handler(),
			Logger:    slogger.With("component", "admin"),
			RateLimit: httpserver.DefaultRouterConfig().RateLimit,
			AccessLog: true,
		})
		adminSrv = httpserver.New(cfg.Server.Admin.Addr, router, slogger.With("component", "admin"))
		if err := adminSrv.Start(); err != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer done()
			_ = redisSrv.Shutdown(shutdownCtx)
			return fmt.Errorf("start admin server: %w", err)
		}
	}

	sh := shutdown.NewHandler(cfg.Shutdown.Timeout, slogger)

	// Hooks run in reverse order: watcher, admin, redis, janitor.
	sh.OnShutdown("janitor", func(ctx context.Context) error {
		cancel()
		select {
		case <-janitorDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	sh.OnShutdown("redis", redisSrv.Shutdown)
	if adminSrv != nil {
		sh.OnShutdown("admin", adminSrv.Shutdown)
	}
	if configFile != "" {
		w, err := watchConfig(configFile, slogger)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			sh.OnShutdown("config-watcher", func(context.Context) error { return w.Stop() })
		}
	}

	log.Info("server started",
		"redis_addr", redisSrv.Addr().String(),
		"admin_addr", cfg.Server.Admin.Addr)

	if err := sh.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

func redisConfig(cfg *config.ServerConfig) *redisserver.Config {
	r := cfg.Server.Redis
	return &redisserver.Config{
		Addr:         r.Addr,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
		IdleTimeout:  r.IdleTimeout,
		RateLimit:    r.RateLimit,
		MaxClients:   r.MaxClients,
	}
}

// watchConfig reloads the config file on change and applies log.level.
// Other settings need a restart.
func watchConfig(path string, log *slog.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.With("component", "config-watcher")))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		applyReload(path, log)
	})
	w.StartAsync()
	return w, nil
}

func applyReload(path string, log *slog.Logger) {
	cfg, err := buildConfig(path, "", nil)
	if err != nil {
		log.Warn("config reload rejected", "error", err)
		return
	}
	prev := logger.GetLevel()
	if cfg.Log.Level == prev {
		return
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		log.Warn("config reload rejected", "error", err)
		return
	}
	log.Info("log level changed", "from", prev, "to", cfg.Log.Level)
}
