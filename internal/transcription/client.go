package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/heyito/ito-sub003/internal/audio"
	"github.com/heyito/ito-sub003/internal/shared"
	"github.com/heyito/ito-sub003/internal/transcription/transcribepb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxMessageSize = 64 * 1024 * 1024
	defaultChunkSize      = 32 * 1024
)

// Client opens one client-streaming call per session against the
// transcription server.
type Client struct {
	conn      *grpc.ClientConn
	client    transcribepb.TranscribeServiceClient
	token     string
	chunkSize int
	log       *slog.Logger
}

// New dials lazily; the connection is established by the first Open.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	creds := grpc.WithTransportCredentials(insecure.NewCredentials())
	if cfg.TLSCreds != nil {
		creds = grpc.WithTransportCredentials(cfg.TLSCreds)
	}

	maxMsgSize := cfg.MaxMessageSize
	if maxMsgSize <= 0 {
		maxMsgSize = defaultMaxMessageSize
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	bo := shared.NormalizeBackoff(cfg.Backoff)
	opts := append([]grpc.DialOption{
		creds,
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  bo.Initial,
				Multiplier: 2,
				Jitter:     0.2,
				MaxDelay:   bo.MaxDelay,
			},
			MinConnectTimeout: 5 * time.Second,
		}),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial transcription server: %w", err)
	}

	return &Client{
		conn:      conn,
		client:    transcribepb.NewTranscribeServiceClient(conn),
		token:     cfg.Token,
		chunkSize: chunkSize,
		log:       logger.With("component", "transcription_client"),
	}, nil
}

func (c *Client) IsConnected() bool {
	s := c.conn.GetState()
	return s == connectivity.Ready || s == connectivity.Idle
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Open validates the metadata and starts a stream. Invalid metadata fails
// with shared.ErrValidation before anything is sent.
func (c *Client) Open(ctx context.Context, req OpenRequest) (*Stream, error) {
	if err := req.Metadata.Validate(); err != nil {
		return nil, err
	}
	mode := req.Mode
	if !mode.Valid() {
		mode = shared.ModeTranscribe
	}

	md := req.Metadata.MD()
	if c.token != "" {
		md.Set(mdAuthorization, bearerPrefix+c.token)
	}
	md.Set(mdSessionID, req.SessionID)
	md.Set(mdMode, mode.String())

	ctx, cancel := context.WithCancel(ctx)
	raw, err := c.client.TranscribeStream(metadata.NewOutgoingContext(ctx, md))
	if err != nil {
		cancel()
		return nil, mapError(ctx, "open stream", err, nil)
	}

	c.log.Debug("stream opened", "session_id", req.SessionID, "mode", mode)
	return &Stream{
		ctx:       ctx,
		cancel:    cancel,
		raw:       raw,
		sessionID: req.SessionID,
		chunkSize: c.chunkSize,
		log:       c.log,
	}, nil
}

// Stream is a single in-flight transcription call.
type Stream struct {
	ctx       context.Context
	cancel    context.CancelFunc
	raw       transcribepb.TranscribeService_TranscribeStreamClient
	sessionID string
	chunkSize int
	log       *slog.Logger

	mu       sync.Mutex
	finished bool
}

func (s *Stream) SessionID() string {
	return s.sessionID
}

func (s *Stream) UpdateConfig(cfg StreamConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return fmt.Errorf("update config: stream finished: %w", shared.ErrCancelled)
	}

	err := s.raw.Send(&transcribepb.StreamRequest{Config: &transcribepb.StreamConfig{
		Mode:         cfg.Mode.String(),
		ContextText:  cfg.ContextText,
		Vocabulary:   cfg.Vocabulary,
		SelectedText: cfg.SelectedText,
	}})
	if err != nil && !errors.Is(err, io.EOF) {
		return mapError(s.ctx, "update config", err, nil)
	}
	return nil
}

// Finish sends pcm in chunks, half-closes the stream and waits for the
// server's single reply. Upstream failures come back in Result.Failure.
func (s *Stream) Finish(pcm []byte) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return Result{}, fmt.Errorf("finish: stream finished: %w", shared.ErrCancelled)
	}
	s.finished = true
	defer s.cancel()

	res := Result{Duration: audio.Duration(pcm, audio.DefaultSampleRate)}

	for off := 0; off < len(pcm); off += s.chunkSize {
		end := min(off+s.chunkSize, len(pcm))
		if err := s.raw.Send(&transcribepb.StreamRequest{AudioData: pcm[off:end]}); err != nil {
			// io.EOF means the server already ended the call; its status
			// surfaces from CloseAndRecv.
			if errors.Is(err, io.EOF) {
				break
			}
			return res, mapError(s.ctx, "send audio", err, nil)
		}
	}

	resp, err := s.raw.CloseAndRecv()
	if err != nil {
		return res, mapError(s.ctx, "receive result", err, s.raw.Trailer())
	}

	res.Transcript = resp.GetTranscript()
	if e := resp.GetError(); e != nil {
		res.Failure = shared.NewFailure(shared.ParseKind(e.Kind), e.Message)
	}
	return res, nil
}

// Cancel aborts the call. A Finish in progress returns shared.ErrCancelled.
func (s *Stream) Cancel() {
	s.cancel()
}

// mapError translates a call error. Unavailable is only a provider problem
// when the server says so in the trailer; otherwise the server itself could
// not be reached.
func mapError(ctx context.Context, op string, err error, trailer metadata.MD) error {
	st, _ := status.FromError(err)
	var sentinel error
	switch st.Code() {
	case codes.InvalidArgument:
		sentinel = shared.ErrValidation
	case codes.Unavailable:
		if first(trailer.Get(mdErrorKind)) == string(shared.KindProviderUnavailable) {
			sentinel = shared.ErrProviderUnavailable
		} else {
			sentinel = shared.ErrServerUnavailable
		}
	case codes.Canceled, codes.DeadlineExceeded:
		if ctx.Err() != nil {
			sentinel = shared.ErrCancelled
		} else {
			sentinel = shared.ErrInternal
		}
	default:
		sentinel = shared.ErrInternal
	}
	return fmt.Errorf("%s: %s: %w", op, st.Message(), sentinel)
}
