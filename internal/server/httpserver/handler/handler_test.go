package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestHandler(ready ReadyFunc) *Handler {
	status := func() Status {
		return Status{Version: "v1.2.3", Connections: 2, Keys: 5, ExpiredLazy: 1}
	}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "kvmesh_up 1\n")
	})
	return New(status, ready, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

// ============================================================================
// Routes
// ============================================================================

func TestHandler_Routes(t *testing.T) {
	h := newTestHandler(nil)

	tests := []struct {
		method, path string
		wantStatus   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/status", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/sessions", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if rec := do(t, h, tt.method, tt.path); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandler_OptionalRoutes(t *testing.T) {
	h := New(nil, nil, nil, nil)

	if rec := do(t, h, http.MethodGet, "/status"); rec.Code != http.StatusNotFound {
		t.Errorf("/status without StatusFunc = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("/metrics without handler = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/ready"); rec.Code != http.StatusOK {
		t.Errorf("/ready without ReadyFunc = %d, want 200", rec.Code)
	}
}

// ============================================================================
// Bodies
// ============================================================================

func TestHandler_Health(t *testing.T) {
	rec := do(t, newTestHandler(nil), http.MethodGet, "/health")

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	resp := decode(t, rec)
	if resp.Code != CodeOK {
		t.Errorf("Code = %q, want OK", resp.Code)
	}
	data, _ := resp.Data.(map[string]any)
	if data["status"] != "healthy" {
		t.Errorf("data = %v", resp.Data)
	}
}

func TestHandler_NotReady(t *testing.T) {
	h := newTestHandler(func() error { return errors.New("redis listener not running") })

	rec := do(t, h, http.MethodGet, "/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := rec.Header().Get("X-Error-Code"); got != CodeNotReady {
		t.Errorf("X-Error-Code = %q", got)
	}
	resp := decode(t, rec)
	if resp.Code != CodeNotReady || resp.Message != "redis listener not running" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandler_Status(t *testing.T) {
	rec := do(t, newTestHandler(nil), http.MethodGet, "/status")

	var body struct {
		Data Status `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Status{Version: "v1.2.3", Connections: 2, Keys: 5, ExpiredLazy: 1}
	if body.Data != want {
		t.Errorf("status = %+v, want %+v", body.Data, want)
	}
}

func TestHandler_RequestIDEcho(t *testing.T) {
	h := newTestHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if resp := decode(t, rec); resp.RequestID != "req-abc" {
		t.Errorf("RequestID = %q, want req-abc", resp.RequestID)
	}
}
