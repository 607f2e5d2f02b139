package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func serveHealth(t *testing.T, h echo.HandlerFunc) (int, Health) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body Health
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec.Code, body
}

func TestHealthHandler_MemoryStorage(t *testing.T) {
	code, body := serveHealth(t, HealthHandler(nil, "1.2.3"))
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Status != "healthy" || body.Storage != "memory" || body.Version != "1.2.3" || body.Pool != nil {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHealthHandler_Postgres(t *testing.T) {
	stats := func() *PoolStats { return &PoolStats{TotalConns: 2, MaxConns: 20} }

	code, body := serveHealth(t, healthHandler(fakePinger{}, stats, "dev"))
	if code != http.StatusOK || body.Status != "healthy" || body.Storage != "postgres" {
		t.Errorf("unexpected response %d %+v", code, body)
	}
	if body.Pool == nil || body.Pool.MaxConns != 20 {
		t.Errorf("expected pool stats, got %+v", body.Pool)
	}

	code, body = serveHealth(t, healthHandler(fakePinger{err: errors.New("connection refused")}, stats, "dev"))
	if code != http.StatusServiceUnavailable || body.Status != "unhealthy" || body.Error != "connection refused" {
		t.Errorf("unexpected response %d %+v", code, body)
	}
}
