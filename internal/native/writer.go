package native

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
)

const writeTimeout = 10 * time.Second

// TextWriter types text into the focused application through the
// text-writer helper.
type TextWriter struct {
	path      string
	charDelay time.Duration
	log       *slog.Logger
}

func NewTextWriter(path string, charDelay time.Duration, logger *slog.Logger) *TextWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextWriter{
		path:      path,
		charDelay: charDelay,
		log:       logger.With("component", "text_writer"),
	}
}

func (w *TextWriter) args(text string) []string {
	args := []string{}
	if w.charDelay > 0 {
		args = append(args, "--char-delay", formatMillis(w.charDelay))
	}
	return append(args, "--", text)
}

func (w *TextWriter) InsertText(text string) bool {
	if text == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, w.path, w.args(text)...).CombinedOutput()
	if err != nil {
		w.log.Warn("text writer failed", "error", err, "output", strings.TrimSpace(string(out)))
		return false
	}
	return true
}

// ClipboardInserter places text on the clipboard, for when typing is
// unavailable. The user pastes it themselves.
type ClipboardInserter struct {
	log *slog.Logger
}

func NewClipboardInserter(logger *slog.Logger) *ClipboardInserter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClipboardInserter{log: logger.With("component", "clipboard")}
}

func (c *ClipboardInserter) InsertText(text string) bool {
	if clipboard.Unsupported {
		return false
	}
	if err := clipboard.WriteAll(text); err != nil {
		c.log.Warn("clipboard write failed", "error", err)
		return false
	}
	return true
}

type Inserter interface {
	InsertText(text string) bool
}

// FallbackInserter tries each inserter in order until one succeeds.
type FallbackInserter []Inserter

func (f FallbackInserter) InsertText(text string) bool {
	for _, ins := range f {
		if ins != nil && ins.InsertText(text) {
			return true
		}
	}
	return false
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
