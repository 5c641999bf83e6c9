package transcription

import (
	"time"

	"github.com/heyito/ito-sub003/internal/shared"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

type Config struct {
	Address        string
	Token          string
	TLSCreds       credentials.TransportCredentials
	Backoff        shared.BackoffConfig
	MaxMessageSize int
	ChunkSize      int
	DialOptions    []grpc.DialOption
}

type OpenRequest struct {
	SessionID string
	Mode      shared.Mode
	Metadata  Metadata
}

// StreamConfig is pushed mid-stream once cursor context and vocabulary are
// known. SelectedText is only gathered for edit sessions.
type StreamConfig struct {
	Mode         shared.Mode
	ContextText  string
	Vocabulary   string
	SelectedText string
}

// Result is the outcome of one stream. Failure is set when the server
// reported an upstream error; an empty Transcript without Failure means the
// audio was silent.
type Result struct {
	Transcript string
	Failure    *shared.Failure
	Duration   time.Duration
}
