package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveHealth(h *Health, path string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth_ReadyAndLive(t *testing.T) {
	h := NewHealth("test")

	if rec := serveHealth(h, "/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready before SetReady = %d, want 503", rec.Code)
	}
	h.SetReady(true)
	if rec := serveHealth(h, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("/readyz = %d, want 200", rec.Code)
	}

	if rec := serveHealth(h, "/live"); rec.Code != http.StatusOK {
		t.Errorf("/live = %d, want 200", rec.Code)
	}
	h.SetLive(false)
	if rec := serveHealth(h, "/livez"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/livez after SetLive(false) = %d, want 503", rec.Code)
	}
}

func TestHealth_Checks(t *testing.T) {
	tests := []struct {
		name     string
		dbErr    error
		indexErr error
		code     int
		status   HealthStatus
	}{
		{"all healthy", nil, nil, http.StatusOK, HealthStatusHealthy},
		{"index down", nil, errors.New("connection refused"), http.StatusOK, HealthStatusDegraded},
		{"database down", errors.New("dial tcp"), nil, http.StatusServiceUnavailable, HealthStatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealth("1.0.0")
			h.RegisterCheck("database", DatabaseHealthChecker(func(ctx context.Context) error { return tt.dbErr }))
			h.RegisterCheck("vector_index", VectorIndexHealthChecker("memory", func(ctx context.Context) (int, error) {
				return 3, tt.indexErr
			}))

			rec := serveHealth(h, "/health")
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.status {
				t.Errorf("status = %s, want %s", resp.Status, tt.status)
			}
			if len(resp.Checks) != 2 || resp.Checks[0].Name != "database" || resp.Checks[1].Name != "vector_index" {
				t.Errorf("checks = %+v", resp.Checks)
			}
			if resp.Version != "1.0.0" {
				t.Errorf("version = %q", resp.Version)
			}
		})
	}
}
