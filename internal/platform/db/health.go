package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Health is the body of GET /health.
type Health struct {
	Status  string     `json:"status"`
	Storage string     `json:"storage"`
	Version string     `json:"version"`
	Error   string     `json:"error,omitempty"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health. With a nil pool the service runs on
// in-memory storage and is always healthy.
func HealthHandler(pool *pgxpool.Pool, version string) echo.HandlerFunc {
	if pool == nil {
		return healthHandler(nil, nil, version)
	}
	return healthHandler(pool, func() *PoolStats { return GetPoolStats(pool) }, version)
}

func healthHandler(db pinger, stats func() *PoolStats, version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := Health{Status: "healthy", Storage: "memory", Version: version}
		if db == nil {
			return c.JSON(http.StatusOK, h)
		}

		h.Storage = "postgres"
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		err := db.Ping(ctx)
		h.Pool = stats()
		if err != nil {
			h.Status = "unhealthy"
			h.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}
