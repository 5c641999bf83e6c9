package postprocess

import (
	"context"
	"log/slog"
	"time"
)

const DefaultContextTimeout = 1500 * time.Millisecond

type CursorReader interface {
	CursorContext(ctx context.Context) (string, error)
	SelectedText(ctx context.Context) (string, error)
}

// ContextFetcher reads the text around the cursor and the current selection.
// A slow or broken reader yields "" rather than holding up the session.
type ContextFetcher struct {
	reader  CursorReader
	timeout time.Duration
	log     *slog.Logger
}

func NewContextFetcher(reader CursorReader, timeout time.Duration, logger *slog.Logger) *ContextFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultContextTimeout
	}
	return &ContextFetcher{
		reader:  reader,
		timeout: timeout,
		log:     logger.With("component", "context_fetcher"),
	}
}

func (f *ContextFetcher) Fetch(ctx context.Context) string {
	if f.reader == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	text, err := f.reader.CursorContext(ctx)
	if err != nil {
		f.log.Debug("cursor context unavailable", "error", err)
		return ""
	}
	return text
}

func (f *ContextFetcher) Selection(ctx context.Context) string {
	if f.reader == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	text, err := f.reader.SelectedText(ctx)
	if err != nil {
		f.log.Debug("selected text unavailable", "error", err)
		return ""
	}
	return text
}
