package health

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines         int    `json:"goroutines"`
	MemoryAllocMB      uint64 `json:"memory_alloc_mb"`
	MemoryTotalAllocMB uint64 `json:"memory_total_alloc_mb"`
	MemorySysMB        uint64 `json:"memory_sys_mb"`
	NumGC              uint32 `json:"num_gc"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Runtime       RuntimeStats               `json:"runtime"`
	Components    map[string]ComponentStatus `json:"components"`
}

type CheckFunc func(ctx context.Context) ComponentStatus

// Check is one readiness check. A critical check that is unhealthy makes the
// whole service unhealthy; any other failure only degrades it.
type Check struct {
	Name     string
	Critical bool
	Run      CheckFunc
}

type Handler struct {
	checks    []Check
	version   string
	startTime time.Time
}

func NewHandler(version string, checks ...Check) *Handler {
	return &Handler{
		checks:    checks,
		version:   version,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	components := make(map[string]ComponentStatus)
	var mu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(len(h.checks))
	for _, check := range h.checks {
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			status := fn(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}(check.Name, check.Run)
	}
	wg.Wait()

	overallStatus := h.computeOverallStatus(components)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Runtime: RuntimeStats{
			Goroutines:         runtime.NumGoroutine(),
			MemoryAllocMB:      memStats.Alloc / 1024 / 1024,
			MemoryTotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
			MemorySysMB:        memStats.Sys / 1024 / 1024,
			NumGC:              memStats.NumGC,
		},
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

func (h *Handler) computeOverallStatus(components map[string]ComponentStatus) Status {
	for _, check := range h.checks {
		if status, ok := components[check.Name]; ok && check.Critical && status.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
	}

	for _, status := range components {
		if status.Status != StatusHealthy {
			return StatusDegraded
		}
	}
	return StatusHealthy
}

func DatabaseCheck(db *gorm.DB) CheckFunc {
	return func(ctx context.Context) ComponentStatus {
		start := time.Now()
		if db == nil {
			return unhealthy(start, "database not configured")
		}

		sqlDB, err := db.DB()
		if err != nil {
			return unhealthy(start, "failed to get underlying db")
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return unhealthy(start, "ping failed")
		}

		return ComponentStatus{
			Status:    evaluateDBStats(sqlDB.Stats()),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}
}

func evaluateDBStats(stats sql.DBStats) Status {
	if stats.OpenConnections >= stats.MaxOpenConnections && stats.MaxOpenConnections > 0 {
		return StatusDegraded
	}
	return StatusHealthy
}

func RedisCheck(client *redis.Client) CheckFunc {
	return func(ctx context.Context) ComponentStatus {
		start := time.Now()
		if client == nil {
			return unhealthy(start, "redis not configured")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return unhealthy(start, "ping failed")
		}
		return healthy(start)
	}
}

// LivenessCheck wraps a component that reports its own liveness, such as a
// gRPC client or a supervised helper process.
func LivenessCheck(what string, alive func() bool) CheckFunc {
	return func(context.Context) ComponentStatus {
		start := time.Now()
		if alive == nil {
			return unhealthy(start, what+" not configured")
		}
		if !alive() {
			return unhealthy(start, what+" not running")
		}
		return healthy(start)
	}
}

// ProvidersCheck is degraded when no provider is configured at all.
func ProvidersCheck(available func() []string) CheckFunc {
	return func(context.Context) ComponentStatus {
		start := time.Now()
		if len(available()) == 0 {
			return ComponentStatus{
				Status:    StatusDegraded,
				LatencyMs: time.Since(start).Milliseconds(),
				Error:     "no providers configured",
			}
		}
		return healthy(start)
	}
}

func healthy(start time.Time) ComponentStatus {
	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func unhealthy(start time.Time, msg string) ComponentStatus {
	return ComponentStatus{
		Status:    StatusUnhealthy,
		LatencyMs: time.Since(start).Milliseconds(),
		Error:     msg,
	}
}
