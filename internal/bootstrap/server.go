package bootstrap

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
)

const version = "1.0.0"

// ListenAddr is the HTTP address of whichever binary is running.
type ListenAddr string

var defaultCORSConfig = middleware.CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPut,
		http.MethodPost,
		http.MethodDelete,
		http.MethodOptions,
	},
	AllowHeaders: []string{
		"Accept",
		"Authorization",
		"Content-Type",
		"X-Requested-With",
	},
	MaxAge: 86400,
}

func NewEchoServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(defaultCORSConfig))
	return e
}

func StartServer(lc fx.Lifecycle, e *echo.Echo, addr ListenAddr, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("http server starting", "addr", string(addr))
				if err := e.Start(string(addr)); err != nil && err != http.ErrServerClosed {
					logger.Error("http server error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

var ServerModule = fx.Options(
	fx.Provide(NewEchoServer),
	fx.Invoke(StartServer),
)

// RunServer starts the transcription server: the gRPC TranscribeService plus
// health and metrics over HTTP.
func RunServer() {
	fx.New(
		fx.Provide(
			LoadConfig,
			ProvideLogger,
			func(cfg *Config) ListenAddr { return ListenAddr(cfg.ServerAddr) },
			ProvideRedisClient,
		),
		ServerModule,
		ProvidersModule,
		GRPCModule,
		ServerHealthModule,
	).Run()
}

// RunAgent starts the desktop dictation agent.
func RunAgent() {
	fx.New(
		fx.Provide(
			LoadConfig,
			ProvideLogger,
			func(cfg *Config) ListenAddr { return ListenAddr(cfg.AgentHTTPAddr) },
		),
		InfrastructureModule,
		ServerModule,
		AgentModule,
		AgentHealthModule,
	).Run()
}
