package db

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
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
		Healthy:         stat.TotalConns() > 0,
	}
}

// Check probes one backing service.
type Check func(ctx context.Context) error

// Readiness aggregates named checks for the /readyz endpoint.
type Readiness struct {
	checks map[string]Check
	pool   *pgxpool.Pool
}

func NewReadiness() *Readiness {
	return &Readiness{checks: make(map[string]Check)}
}

// Add registers a named check. A nil check is ignored.
func (r *Readiness) Add(name string, check Check) {
	if check != nil {
		r.checks[name] = check
	}
}

// SetPool attaches the Postgres pool so its stats are reported.
func (r *Readiness) SetPool(pool *pgxpool.Pool) {
	r.pool = pool
	r.Add("postgres", pool.Ping)
}

// Run executes every check with a shared 5s deadline.
func (r *Readiness) Run(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := r.checks[name](ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

// Handler serves the readiness report: 200 when all checks pass, 503 otherwise.
func (r *Readiness) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		results, healthy := r.Run(c.Request().Context())
		body := map[string]interface{}{
			"status": "healthy",
			"checks": results,
		}
		if r.pool != nil {
			body["pool"] = GetPoolStats(r.pool)
		}
		if !healthy {
			body["status"] = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}
