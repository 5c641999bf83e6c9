package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func readiness(t *testing.T, h *Handler) (int, HealthResponse) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec.Code, resp
}

func TestLiveness(t *testing.T) {
	e := echo.New()
	NewHandler("test").RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness_Healthy(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	h := NewHandler("1.0.0",
		Check{Name: "database", Critical: true, Run: DatabaseCheck(db)},
		Check{Name: "redis", Critical: true, Run: RedisCheck(client)},
		Check{Name: "recorder", Run: LivenessCheck("recorder", func() bool { return true })},
		Check{Name: "providers", Run: ProvidersCheck(func() []string { return []string{"asr:groq"} })},
	)

	code, resp := readiness(t, h)
	if code != http.StatusOK || resp.Status != StatusHealthy {
		t.Errorf("expected healthy 200, got %d %s", code, resp.Status)
	}
	if len(resp.Components) != 4 {
		t.Errorf("expected 4 components, got %d", len(resp.Components))
	}
	if resp.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", resp.Version)
	}
}

func TestReadiness_DegradedByOptionalComponent(t *testing.T) {
	h := NewHandler("test",
		Check{Name: "key_listener", Run: LivenessCheck("key listener", func() bool { return false })},
		Check{Name: "providers", Run: ProvidersCheck(func() []string { return nil })},
	)

	code, resp := readiness(t, h)
	if code != http.StatusOK || resp.Status != StatusDegraded {
		t.Errorf("expected degraded 200, got %d %s", code, resp.Status)
	}
	if resp.Components["key_listener"].Error != "key listener not running" {
		t.Errorf("unexpected component %+v", resp.Components["key_listener"])
	}
}

func TestReadiness_UnhealthyCritical(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	h := NewHandler("test",
		Check{Name: "redis", Critical: true, Run: RedisCheck(client)},
		Check{Name: "database", Critical: true, Run: DatabaseCheck(nil)},
	)

	code, resp := readiness(t, h)
	if code != http.StatusServiceUnavailable || resp.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy 503, got %d %s", code, resp.Status)
	}
	if resp.Components["database"].Error != "database not configured" {
		t.Errorf("unexpected database status %+v", resp.Components["database"])
	}
}
