package bootstrap

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/heyito/ito-sub003/internal/dictionary"
	"github.com/heyito/ito-sub003/internal/interaction"
	"github.com/heyito/ito-sub003/internal/messenger"
	"github.com/heyito/ito-sub003/internal/metrics"
	"github.com/heyito/ito-sub003/internal/native"
	"github.com/heyito/ito-sub003/internal/postprocess"
	"github.com/heyito/ito-sub003/internal/session"
	"github.com/heyito/ito-sub003/internal/shortcut"
	"github.com/heyito/ito-sub003/internal/transcription"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	interactionRetention = 30 * 24 * time.Hour
	startupCheckTimeout  = 3 * time.Second
)

func ProvideInteractionStore(db *gorm.DB) *interaction.Store {
	return interaction.NewStore(db)
}

func ProvideDictionaryStore(redisClient *redis.Client, logger *slog.Logger) *dictionary.Store {
	return dictionary.NewStore(redisClient, logger)
}

func RunMigrations(store *interaction.Store) error {
	return store.Migrate()
}

func ProvideTranscriptionClient(lc fx.Lifecycle, cfg *Config, logger *slog.Logger) (*transcription.Client, error) {
	client, err := transcription.New(transcription.Config{
		Address: cfg.ITOServerAddr,
		Token:   cfg.ITOToken,
	}, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func ProvideBindings(cfg *Config) ([]shortcut.Binding, error) {
	bindings, err := shortcut.LoadBindings(cfg.ShortcutsFile)
	if err != nil {
		return nil, err
	}
	return shortcut.Prepare(bindings, runtime.GOOS)
}

func ProvideMatcher(bindings []shortcut.Binding, logger *slog.Logger) *shortcut.Matcher {
	return shortcut.NewMatcher(bindings, logger)
}

func ProvideKeyListener(cfg *Config, logger *slog.Logger) *native.KeyListener {
	return native.NewKeyListener(native.ProcessConfig{Path: cfg.KeyListenerBin}, logger)
}

func ProvideAudioRecorder(cfg *Config, logger *slog.Logger) *native.AudioRecorder {
	return native.NewAudioRecorder(native.ProcessConfig{Path: cfg.AudioRecorderBin}, cfg.MicDevice, logger)
}

func ProvideCursorReader(cfg *Config, logger *slog.Logger) *native.CursorReader {
	return native.NewCursorReader(native.ProcessConfig{Path: cfg.TextReaderBin}, cfg.ContextLength, logger)
}

func ProvideTextInserter(cfg *Config, logger *slog.Logger) native.FallbackInserter {
	return native.FallbackInserter{
		native.NewTextWriter(cfg.TextWriterBin, cfg.TypingCharDelay, logger),
		native.NewClipboardInserter(logger),
	}
}

func streamMetadata(cfg *Config) transcription.Metadata {
	return transcription.Metadata{
		ASRProvider:         cfg.ASRProvider,
		ASRModel:            cfg.ASRModel,
		ASRPrompt:           cfg.ASRPrompt,
		LLMProvider:         cfg.LLMProvider,
		LLMModel:            cfg.LLMModel,
		LLMTemperature:      cfg.LLMTemperature,
		TranscriptionPrompt: cfg.TranscriptionPrompt,
		EditingPrompt:       cfg.EditingPrompt,
		NoSpeechThreshold:   cfg.NoSpeechThreshold,
		LowQualityThreshold: cfg.LowQualityThreshold,
	}
}

type ControllerParams struct {
	fx.In

	Config       *Config
	Recorder     *native.AudioRecorder
	CursorReader *native.CursorReader
	Client       *transcription.Client
	Inserter     native.FallbackInserter
	Dictionary   *dictionary.Store
	Interactions *interaction.Store
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

func ProvideController(p ControllerParams) *session.Controller {
	cfg := session.Config{
		Recorder:    p.Recorder,
		Transcriber: session.FromClient(p.Client),
		Inserter:    p.Inserter,
		Vocabulary:  p.Dictionary,
		Processor:   postprocess.New(p.Config.Grammar),
		Store:       p.Interactions,
		Observer:    p.Metrics,
		Metadata:    streamMetadata(p.Config),
	}
	if p.Config.CursorContext {
		fetcher := postprocess.NewContextFetcher(p.CursorReader, postprocess.DefaultContextTimeout, p.Logger)
		cfg.Context = fetcher
		cfg.Selection = fetcher
	}
	return session.NewController(cfg, p.Logger)
}

func ProvideDispatcher(controller *session.Controller, matcher *shortcut.Matcher, logger *slog.Logger) *session.Dispatcher {
	return session.NewDispatcher(controller, matcher, session.DefaultRequestTimeout, logger)
}

func ProvideHub(logger *slog.Logger) *messenger.Hub {
	return messenger.NewHub(logger)
}

func ProvideInteractionHandler(store *interaction.Store, logger *slog.Logger) *interaction.Handler {
	return interaction.NewHandler(store, logger)
}

func ProvideDictionaryHandler(store *dictionary.Store, logger *slog.Logger) *dictionary.Handler {
	return dictionary.NewHandler(store, logger)
}

func ProvideSessionHandler(controller *session.Controller, recorder *native.AudioRecorder, logger *slog.Logger) *session.Handler {
	return session.NewHandler(controller, recorder, logger)
}

type AgentRoutes struct {
	fx.In

	Interactions *interaction.Handler
	Dictionary   *dictionary.Handler
	Session      *session.Handler
	Hub          *messenger.Hub
	Metrics      *metrics.Metrics
}

func RegisterAgentRoutes(e *echo.Echo, r AgentRoutes) {
	api := e.Group("/v1")
	r.Interactions.RegisterRoutes(api.Group("/interactions"))
	r.Dictionary.RegisterRoutes(api.Group("/dictionary"))
	r.Session.RegisterRoutes(api.Group("/session"))
	r.Hub.RegisterRoutes(e)
	RegisterMetricsRoute(e, r.Metrics)
}

type AgentRuntime struct {
	fx.In

	Config       *Config
	Bindings     []shortcut.Binding
	KeyListener  *native.KeyListener
	Recorder     *native.AudioRecorder
	CursorReader *native.CursorReader
	Controller   *session.Controller
	Dispatcher   *session.Dispatcher
	Hub          *messenger.Hub
	Interactions *interaction.Store
	Logger       *slog.Logger
}

// StartAgent launches the helper processes and wires key events into the
// dispatcher and controller events out to the UI windows.
func StartAgent(lc fx.Lifecycle, rt AgentRuntime) {
	runCtx, cancel := context.WithCancel(context.Background())
	log := rt.Logger.With("component", "agent")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			rt.Recorder.OnAudio(rt.Controller.HandleAudio)
			if err := rt.Recorder.Start(runCtx); err != nil {
				return err
			}
			if err := rt.KeyListener.Start(runCtx); err != nil {
				return err
			}
			if err := rt.KeyListener.RegisterHotkeys(rt.Bindings); err != nil {
				log.Warn("failed to register hotkeys", "error", err)
			}
			if rt.Config.CursorContext {
				if err := rt.CursorReader.Start(runCtx); err != nil {
					log.Warn("cursor context unavailable", "error", err)
				}
			}

			go checkDevice(runCtx, rt.Recorder, log)
			go pruneInteractions(runCtx, rt.Interactions, log)

			sub := rt.Controller.Subscribe()
			go func() {
				defer sub.Close()
				rt.Hub.Forward(runCtx, sub.Events())
			}()
			go rt.Dispatcher.Run(runCtx, rt.KeyListener.Events())

			log.Info("agent started", "bindings", len(rt.Bindings))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			rt.Controller.Cancel()
			rt.Dispatcher.Wait()
			rt.Controller.Close()
			rt.Hub.Close()

			for _, stop := range []func() error{rt.KeyListener.Stop, rt.Recorder.Stop, rt.CursorReader.Stop} {
				if err := stop(); err != nil {
					log.Warn("failed to stop helper", "error", err)
				}
			}
			return nil
		},
	})
}

func checkDevice(ctx context.Context, recorder *native.AudioRecorder, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()
	cfg, err := recorder.DeviceConfig(ctx)
	if err != nil {
		log.Warn("failed to read device config", "error", err)
		return
	}
	log.Info("audio device ready",
		"device", recorder.Device(),
		"input_sample_rate", cfg.InputSampleRate,
		"output_sample_rate", cfg.OutputSampleRate,
	)
}

func pruneInteractions(ctx context.Context, store *interaction.Store, log *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := store.DeleteOlderThan(ctx, time.Now().Add(-interactionRetention))
		if err != nil {
			log.Warn("failed to prune interactions", "error", err)
		} else if n > 0 {
			log.Info("pruned interactions", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

var AgentModule = fx.Options(
	fx.Provide(
		ProvideInteractionStore,
		ProvideDictionaryStore,
		ProvideTranscriptionClient,
		ProvideBindings,
		ProvideMatcher,
		ProvideKeyListener,
		ProvideAudioRecorder,
		ProvideCursorReader,
		ProvideTextInserter,
		ProvideMetrics,
		ProvideController,
		ProvideDispatcher,
		ProvideHub,
		ProvideInteractionHandler,
		ProvideDictionaryHandler,
		ProvideSessionHandler,
	),
	fx.Invoke(RunMigrations),
	fx.Invoke(RegisterAgentRoutes),
	fx.Invoke(StartAgent),
)
