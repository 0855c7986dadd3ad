package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// StatusFunc reports the current server status.
type StatusFunc func() Status

// ReadyFunc returns nil when the server can take traffic.
type ReadyFunc func() error

// Handler routes admin requests.
type Handler struct {
	status  StatusFunc
	ready   ReadyFunc
	metrics http.Handler
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New creates a Handler. A nil ready func always reports ready; a nil
// metrics handler leaves /metrics unregistered.
func New(status StatusFunc, ready ReadyFunc, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		status:  status,
		ready:   ready,
		metrics: metrics,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	if h.status != nil {
		h.mux.HandleFunc("GET /status", h.handleStatus)
	}
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics)
	}
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	h.write(w, status, NewResponse(requestID(w, r), data))
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("X-Error-Code", code)
	h.write(w, status, NewErrorResponse(requestID(w, r), code, message))
}

func (h *Handler) write(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// requestID returns the id set by the RequestID middleware, falling back to
// the inbound header.
func requestID(w http.ResponseWriter, r *http.Request) string {
	if id := w.Header().Get("X-Request-ID"); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
