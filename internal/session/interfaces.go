package session

import (
	"context"

	"github.com/heyito/ito-sub003/internal/interaction"
	"github.com/heyito/ito-sub003/internal/transcription"
)

// Recorder controls the native capture process. Frames it produces are fed
// back through Controller.HandleAudio.
type Recorder interface {
	StartCapture(ctx context.Context) error
	StopCapture(ctx context.Context) error
	IsAlive() bool
}

type TranscriptionStream interface {
	UpdateConfig(cfg transcription.StreamConfig) error
	Finish(pcm []byte) (transcription.Result, error)
	Cancel()
}

type Transcriber interface {
	Open(ctx context.Context, req transcription.OpenRequest) (TranscriptionStream, error)
}

// ContextFetcher returns the text around the cursor, or "" when unavailable.
type ContextFetcher interface {
	Fetch(ctx context.Context) string
}

// SelectionFetcher returns the text selected in the focused application, or
// "" when nothing is selected.
type SelectionFetcher interface {
	Selection(ctx context.Context) string
}

type VocabularySource interface {
	Vocabulary(ctx context.Context) (string, error)
}

type TextInserter interface {
	InsertText(text string) bool
}

type TextProcessor interface {
	Apply(transcript, existing string) string
}

type InteractionStore interface {
	Create(ctx context.Context, rec *interaction.Interaction) error
}

type Observer interface {
	ObserveSession(mode, outcome string)
	ObserveVolumeDropped()
	ObserveInsertionFailure()
}

type clientTranscriber struct {
	client *transcription.Client
}

// FromClient adapts a transcription client to the Transcriber interface.
func FromClient(c *transcription.Client) Transcriber {
	return clientTranscriber{client: c}
}

func (t clientTranscriber) Open(ctx context.Context, req transcription.OpenRequest) (TranscriptionStream, error) {
	s, err := t.client.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	return s, nil
}
