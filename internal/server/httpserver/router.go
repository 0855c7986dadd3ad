package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/kvmesh-go/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the admin router.
type RouterConfig struct {
	// Status reports the /status body. Nil disables /status.
	Status handler.StatusFunc

	// Ready gates /ready. Nil always reports ready.
	Ready handler.ReadyFunc

	// Metrics serves /metrics. Nil disables it.
	Metrics http.Handler

	// Logger for request logging.
	Logger *slog.Logger

	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit int

	// AccessLog enables one log line per request.
	AccessLog bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		RateLimit: 100,
		AccessLog: true,
	}
}

// NewRouter creates the admin handler with its middleware chain.
// Order: RequestID -> Recover -> AccessLog -> RateLimit -> Handler
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := handler.New(cfg.Status, cfg.Ready, cfg.Metrics, logger)

	mws := []Middleware{RequestID(), Recover(logger)}
	if cfg.AccessLog {
		mws = append(mws, AccessLog(logger))
	}
	if cfg.RateLimit > 0 {
		mws = append(mws, RateLimit(cfg.RateLimit))
	}
	return Chain(h, mws...)
}
