package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yndnr/kvmesh-go/internal/server/httpserver/handler"
)

func TestNewAdminClient(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
	}{
		{"with http prefix", "http://localhost:6380", "http://localhost:6380"},
		{"with https prefix", "https://localhost:6380/", "https://localhost:6380"},
		{"without prefix", "localhost:6380", "http://localhost:6380"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewAdminClient(tt.addr, 0).BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdminClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("path = %q, want /status", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "kvmesh-cli/") {
			t.Errorf("User-Agent = %q", ua)
		}
		json.NewEncoder(w).Encode(handler.NewResponse("req-1", handler.Status{Keys: 7, Connections: 2}))
	}))
	defer srv.Close()

	st, err := NewAdminClient(srv.URL, 0).Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Keys != 7 || st.Connections != 2 {
		t.Errorf("Status() = %+v", st)
	}
}

func TestAdminClient_ReadyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(handler.NewErrorResponse("req-1", handler.CodeNotReady, "redis listener not running"))
	}))
	defer srv.Close()

	err := NewAdminClient(srv.URL, 0).Ready(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis listener not running") {
		t.Errorf("Ready() error = %v", err)
	}
}

func TestParseResponse_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusBadGateway)
	rec.WriteString("upstream down")

	err := ParseResponse(rec.Result(), nil)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("ParseResponse() error = %v", err)
	}
}
