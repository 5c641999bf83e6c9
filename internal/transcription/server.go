package transcription

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/heyito/ito-sub003/internal/audio"
	"github.com/heyito/ito-sub003/internal/provider"
	"github.com/heyito/ito-sub003/internal/shared"
	"github.com/heyito/ito-sub003/internal/transcription/transcribepb"
	"github.com/heyito/ito-sub003/internal/usage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type UsageRecorder interface {
	Record(ctx context.Context, r usage.Record) error
}

type RequestObserver interface {
	ObserveRequest(provider, outcome string, latency time.Duration)
}

type ServiceConfig struct {
	Token    string
	Registry *provider.Registry
	Usage    UsageRecorder
	Observer RequestObserver
}

// Service is the server side of ito.TranscribeService.
type Service struct {
	token    string
	registry *provider.Registry
	usage    UsageRecorder
	observer RequestObserver
	log      *slog.Logger
}

func NewService(cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = provider.NewRegistry()
	}
	return &Service{
		token:    cfg.Token,
		registry: cfg.Registry,
		usage:    cfg.Usage,
		observer: cfg.Observer,
		log:      logger.With("component", "transcription_service"),
	}
}

func (s *Service) TranscribeStream(stream transcribepb.TranscribeService_TranscribeStreamServer) error {
	ctx := stream.Context()
	md, _ := metadata.FromIncomingContext(ctx)

	if s.token != "" && bearerToken(md) != s.token {
		return status.Error(codes.Unauthenticated, "invalid token")
	}

	meta, err := MetadataFromIncoming(md)
	if err == nil {
		err = meta.Validate()
	}
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	cfg := StreamConfig{Mode: shared.ModeTranscribe}
	if v := md.Get(mdMode); len(v) > 0 {
		if mode, err := shared.ParseMode(v[0]); err == nil {
			cfg.Mode = mode
		}
	}

	log := s.log.With("session_id", first(md.Get(mdSessionID)), "asr_provider", meta.ASRProvider, "mode", cfg.Mode)

	asr, err := s.registry.ASR(meta.ASRProvider)
	if err != nil {
		log.Warn("asr provider unavailable", "error", err)
		return providerUnavailable(stream, err)
	}

	var pcm bytes.Buffer
	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.recvError(ctx, log, err)
		}
		pcm.Write(req.GetAudioData())
		if c := req.GetConfig(); c != nil {
			if err := mergeConfig(&cfg, c); err != nil {
				return status.Error(codes.InvalidArgument, err.Error())
			}
		}
	}

	audioDur := audio.Duration(pcm.Bytes(), audio.DefaultSampleRate)
	start := time.Now()
	transcript, err := s.transcribe(ctx, asr, meta, cfg, pcm.Bytes())
	latency := time.Since(start)

	if ctx.Err() != nil || shared.KindOf(err) == shared.KindCancelled {
		log.Debug("client cancelled stream")
		s.record(meta.ASRProvider, "cancelled", audioDur, latency, false)
		return status.Error(codes.Canceled, "cancelled by client")
	}
	if err != nil {
		if errors.Is(err, shared.ErrProviderUnavailable) {
			log.Warn("provider unavailable", "error", err)
			s.record(meta.ASRProvider, "unavailable", audioDur, latency, true)
			return providerUnavailable(stream, err)
		}
		log.Warn("transcription failed", "error", err, "latency_ms", latency.Milliseconds())
		s.record(meta.ASRProvider, "failed", audioDur, latency, true)
		return stream.SendAndClose(&transcribepb.TranscriptionResponse{
			Error: &transcribepb.ErrorDetail{Message: err.Error(), Kind: string(shared.KindTranscription)},
		})
	}

	log.Info("transcription complete", "audio_bytes", pcm.Len(), "latency_ms", latency.Milliseconds())
	s.record(meta.ASRProvider, "ok", audioDur, latency, false)
	return stream.SendAndClose(&transcribepb.TranscriptionResponse{Transcript: transcript})
}

func (s *Service) transcribe(ctx context.Context, asr provider.ASR, meta Metadata, cfg StreamConfig, pcm []byte) (string, error) {
	wav := audio.ToWav(pcm, audio.DefaultSampleRate, 1, 16)

	vocab := cfg.Vocabulary
	if vocab == "" {
		vocab = meta.Vocabulary
	}
	res, err := asr.Transcribe(ctx, provider.TranscribeRequest{
		WAV:    wav,
		Model:  meta.ASRModel,
		Prompt: asrPrompt(meta.ASRPrompt, vocab),
	})
	if err != nil {
		return "", err
	}

	text := provider.FilterSegments(res, meta.NoSpeechThreshold, meta.LowQualityThreshold)
	if text == "" {
		return "", nil
	}

	var req provider.CompletionRequest
	switch {
	case cfg.Mode == shared.ModeEdit:
		req.System = meta.EditingPrompt
		if req.System == "" {
			req.System = provider.DefaultEditingPrompt
		}
		req.User = provider.EditPrompt(cfg.SelectedText, text, cfg.ContextText)
	case meta.TranscriptionPrompt != "":
		req.System = meta.TranscriptionPrompt
		req.User = text
	default:
		return text, nil
	}
	req.Model = meta.LLMModel
	req.Temperature = float32(meta.LLMTemperature)

	name := meta.LLMProvider
	if name == "" {
		name = meta.ASRProvider
	}
	llm, err := s.registry.LLM(name)
	if err != nil {
		return "", err
	}
	return llm.Complete(ctx, req)
}

func (s *Service) recvError(ctx context.Context, log *slog.Logger, err error) error {
	if ctx.Err() != nil || status.Code(err) == codes.Canceled {
		log.Debug("client cancelled stream")
		return status.Error(codes.Canceled, "cancelled by client")
	}
	log.Warn("receive failed", "error", err)
	return err
}

func (s *Service) record(name, outcome string, audioDur, latency time.Duration, failed bool) {
	if s.observer != nil {
		s.observer.ObserveRequest(name, outcome, latency)
	}
	if s.usage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.usage.Record(ctx, usage.Record{
		Provider: name,
		Failed:   failed,
		Audio:    audioDur,
		Latency:  latency,
	})
	if err != nil {
		s.log.Warn("record usage failed", "error", err)
	}
}

func mergeConfig(cfg *StreamConfig, c *transcribepb.StreamConfig) error {
	if c.Mode != "" {
		mode, err := shared.ParseMode(c.Mode)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}
	if c.ContextText != "" {
		cfg.ContextText = c.ContextText
	}
	if c.Vocabulary != "" {
		if err := checkVocabulary(c.Vocabulary); err != nil {
			return err
		}
		cfg.Vocabulary = c.Vocabulary
	}
	if c.SelectedText != "" {
		cfg.SelectedText = c.SelectedText
	}
	return nil
}

// providerUnavailable marks the status so clients can tell a misconfigured
// provider apart from an unreachable server.
func providerUnavailable(stream grpc.ServerStream, err error) error {
	stream.SetTrailer(metadata.Pairs(mdErrorKind, string(shared.KindProviderUnavailable)))
	return status.Error(codes.Unavailable, err.Error())
}

func asrPrompt(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}
