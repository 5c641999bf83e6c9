package bootstrap

import (
	"context"
	"log/slog"

	"github.com/heyito/ito-sub003/internal/metrics"
	"github.com/heyito/ito-sub003/internal/provider"
	"github.com/heyito/ito-sub003/internal/transcription"
	"github.com/heyito/ito-sub003/internal/usage"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// ProvideRegistry registers every provider that has credentials configured.
func ProvideRegistry(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) (*provider.Registry, error) {
	reg := provider.NewRegistry()

	if cfg.OpenAIAPIKey != "" {
		p := provider.NewOpenAI(cfg.OpenAIAPIKey)
		reg.RegisterASR(p)
		reg.RegisterLLM(p)
	}
	if cfg.GroqAPIKey != "" {
		p := provider.NewGroq(cfg.GroqAPIKey)
		reg.RegisterASR(p)
		reg.RegisterLLM(p)
	}
	if cfg.OllamaBaseURL != "" {
		reg.RegisterLLM(provider.NewOllama(cfg.OllamaBaseURL))
	}
	if cfg.GeminiAPIKey != "" {
		p, err := provider.NewGemini(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		reg.RegisterASR(p)
		reg.RegisterLLM(p)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return p.Close()
			},
		})
	}

	available := reg.Available()
	if len(available) == 0 {
		logger.Warn("no transcription providers configured")
	} else {
		logger.Info("transcription providers registered", "providers", available)
	}
	return reg, nil
}

func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

func ProvideUsageStore(redisClient *redis.Client) *usage.Store {
	return usage.NewStore(redisClient)
}

func ProvideTranscriptionService(cfg *Config, reg *provider.Registry, usageStore *usage.Store, m *metrics.Metrics, logger *slog.Logger) *transcription.Service {
	return transcription.NewService(transcription.ServiceConfig{
		Token:    cfg.ServerToken,
		Registry: reg,
		Usage:    usageStore,
		Observer: m,
	}, logger)
}

func RegisterMetricsRoute(e *echo.Echo, m *metrics.Metrics) {
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
}

var ProvidersModule = fx.Options(
	fx.Provide(
		ProvideRegistry,
		ProvideMetrics,
		ProvideUsageStore,
		ProvideTranscriptionService,
	),
	fx.Invoke(RegisterMetricsRoute),
)
