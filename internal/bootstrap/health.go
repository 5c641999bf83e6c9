package bootstrap

import (
	"github.com/heyito/ito-sub003/internal/health"
	"github.com/heyito/ito-sub003/internal/native"
	"github.com/heyito/ito-sub003/internal/provider"
	"github.com/heyito/ito-sub003/internal/transcription"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideServerHealthHandler(redisClient *redis.Client, reg *provider.Registry) *health.Handler {
	return health.NewHandler(version,
		health.Check{Name: "redis", Critical: true, Run: health.RedisCheck(redisClient)},
		health.Check{Name: "providers", Run: health.ProvidersCheck(reg.Available)},
	)
}

type AgentHealthParams struct {
	fx.In

	DB           *gorm.DB
	Redis        *redis.Client
	Client       *transcription.Client
	KeyListener  *native.KeyListener
	Recorder     *native.AudioRecorder
	CursorReader *native.CursorReader
	Config       *Config
}

func ProvideAgentHealthHandler(p AgentHealthParams) *health.Handler {
	checks := []health.Check{
		{Name: "database", Critical: true, Run: health.DatabaseCheck(p.DB)},
		{Name: "redis", Run: health.RedisCheck(p.Redis)},
		{Name: "transcription", Run: health.LivenessCheck("transcription server", p.Client.IsConnected)},
		{Name: "key_listener", Critical: true, Run: health.LivenessCheck("key listener", p.KeyListener.IsAlive)},
		{Name: "audio_recorder", Critical: true, Run: health.LivenessCheck("audio recorder", p.Recorder.IsAlive)},
	}
	if p.Config.CursorContext {
		checks = append(checks, health.Check{
			Name: "cursor_reader",
			Run:  health.LivenessCheck("cursor reader", p.CursorReader.IsAlive),
		})
	}
	return health.NewHandler(version, checks...)
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	h.RegisterRoutes(e)
}

var ServerHealthModule = fx.Options(
	fx.Provide(ProvideServerHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)

var AgentHealthModule = fx.Options(
	fx.Provide(ProvideAgentHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
