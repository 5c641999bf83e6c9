package native

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
)

const (
	DefaultContextLength   = 4
	DefaultSelectionLength = 10000
)

type cursorResponse struct {
	RequestID   string  `json:"requestId"`
	Success     bool    `json:"success"`
	Text        *string `json:"text"`
	ContextText *string `json:"contextText"`
	Error       *string `json:"error"`
}

// CursorReader asks the selected-text helper for the current selection or
// the text just before the cursor. Replies are matched to requests by
// requestId.
type CursorReader struct {
	sup           *Supervisor
	contextLength int
	log           *slog.Logger
	seq           atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan cursorResponse
}

func NewCursorReader(cfg ProcessConfig, contextLength int, logger *slog.Logger) *CursorReader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "selected-text-reader"
	}
	if contextLength <= 0 {
		contextLength = DefaultContextLength
	}
	c := &CursorReader{
		contextLength: contextLength,
		log:           logger.With("component", "cursor_reader"),
		pending:       make(map[string]chan cursorResponse),
	}
	c.sup = NewSupervisor(cfg, c.consume, nil, logger)
	return c
}

func (c *CursorReader) Start(ctx context.Context) error {
	return c.sup.Start(ctx)
}

func (c *CursorReader) Stop() error {
	return c.sup.Stop()
}

func (c *CursorReader) IsAlive() bool {
	return c.sup.IsAlive()
}

func (c *CursorReader) CursorContext(ctx context.Context) (string, error) {
	resp, err := c.request(ctx, map[string]any{
		"command":       "get-cursor-context",
		"contextLength": c.contextLength,
	})
	if err != nil {
		return "", fmt.Errorf("cursor context: %w", err)
	}
	if resp.ContextText == nil {
		return "", nil
	}
	return *resp.ContextText, nil
}

// SelectedText returns the text selected in the focused application, or ""
// when nothing is selected.
func (c *CursorReader) SelectedText(ctx context.Context) (string, error) {
	resp, err := c.request(ctx, map[string]any{
		"command":   "get-text",
		"maxLength": DefaultSelectionLength,
	})
	if err != nil {
		return "", fmt.Errorf("selected text: %w", err)
	}
	if resp.Text == nil {
		return "", nil
	}
	return *resp.Text, nil
}

func (c *CursorReader) request(ctx context.Context, cmd map[string]any) (cursorResponse, error) {
	id := strconv.FormatUint(c.seq.Add(1), 10)
	ch := make(chan cursorResponse, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	cmd["requestId"] = id
	if err := c.sup.Send(cmd); err != nil {
		return cursorResponse{}, err
	}

	select {
	case resp := <-ch:
		if !resp.Success {
			msg := "unknown error"
			if resp.Error != nil {
				msg = *resp.Error
			}
			return resp, errors.New(msg)
		}
		return resp, nil
	case <-ctx.Done():
		return cursorResponse{}, ctx.Err()
	}
}

func (c *CursorReader) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		var resp cursorResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil || resp.RequestID == "" {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.RequestID]
		c.mu.Unlock()
		if !ok {
			c.log.Debug("reply for unknown request", "request_id", resp.RequestID)
			continue
		}
		select {
		case ch <- resp:
		default:
		}
	}
}
