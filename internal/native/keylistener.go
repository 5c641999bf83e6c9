package native

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/heyito/ito-sub003/internal/shortcut"
)

const (
	heartbeatTimeout = 30 * time.Second
	keyEventBuffer   = 256
)

type keyMessage struct {
	Type      string   `json:"type"`
	Key       string   `json:"key"`
	RawCode   int      `json:"raw_code"`
	Timestamp string   `json:"timestamp"`
	ID        string   `json:"id"`
	Keys      []string `json:"keys"`
}

type hotkeyCombo struct {
	Keys []string `json:"keys"`
}

// KeyListener runs the global key listener and turns its stdout into
// shortcut key events.
type KeyListener struct {
	sup    *Supervisor
	events chan shortcut.KeyEvent
	log    *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	lastBeat time.Time
	hotkeys  []hotkeyCombo
	blocked  []chan []string
}

func NewKeyListener(cfg ProcessConfig, logger *slog.Logger) *KeyListener {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "global-key-listener"
	}
	k := &KeyListener{
		events: make(chan shortcut.KeyEvent, keyEventBuffer),
		log:    logger.With("component", "key_listener"),
		now:    time.Now,
	}
	k.sup = NewSupervisor(cfg, k.consume, k.restarted, logger)
	return k
}

func (k *KeyListener) Start(ctx context.Context) error {
	return k.sup.Start(ctx)
}

func (k *KeyListener) Stop() error {
	return k.sup.Stop()
}

func (k *KeyListener) Events() <-chan shortcut.KeyEvent {
	return k.events
}

// IsAlive reports a running process that has sent a heartbeat recently.
func (k *KeyListener) IsAlive() bool {
	if !k.sup.IsAlive() {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.now().Sub(k.lastBeat) < heartbeatTimeout
}

// RegisterHotkeys tells the listener which chords to swallow so they do not
// reach the focused application. The set is replayed after a restart.
func (k *KeyListener) RegisterHotkeys(bindings []shortcut.Binding) error {
	combos := make([]hotkeyCombo, 0, len(bindings))
	for _, b := range bindings {
		combos = append(combos, hotkeyCombo{Keys: shortcut.RawNames(b.Chord)})
	}
	k.mu.Lock()
	k.hotkeys = combos
	k.mu.Unlock()
	return k.sendHotkeys(combos)
}

func (k *KeyListener) sendHotkeys(combos []hotkeyCombo) error {
	return k.sup.Send(map[string]any{"command": "register_hotkeys", "hotkeys": combos})
}

// Blocked asks the listener which keys it is currently swallowing.
func (k *KeyListener) Blocked(ctx context.Context) ([]string, error) {
	ch := make(chan []string, 1)
	k.mu.Lock()
	k.blocked = append(k.blocked, ch)
	k.mu.Unlock()

	if err := k.sup.Send(map[string]string{"command": "get_blocked"}); err != nil {
		k.dropWaiter(ch)
		return nil, err
	}
	select {
	case keys := <-ch:
		return keys, nil
	case <-ctx.Done():
		k.dropWaiter(ch)
		return nil, fmt.Errorf("blocked keys: %w", ctx.Err())
	}
}

func (k *KeyListener) dropWaiter(ch chan []string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, w := range k.blocked {
		if w == ch {
			k.blocked = append(k.blocked[:i], k.blocked[i+1:]...)
			return
		}
	}
}

func (k *KeyListener) restarted() {
	k.mu.Lock()
	k.lastBeat = k.now()
	combos := k.hotkeys
	k.mu.Unlock()
	if len(combos) > 0 {
		if err := k.sendHotkeys(combos); err != nil {
			k.log.Warn("re-register hotkeys failed", "error", err)
		}
	}
}

func (k *KeyListener) consume(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var msg keyMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			k.log.Debug("ignoring non-json line", "line", scanner.Text())
			continue
		}
		k.handle(msg)
	}
	if err := scanner.Err(); err != nil {
		k.log.Warn("read key listener output", "error", err)
	}
}

func (k *KeyListener) handle(msg keyMessage) {
	switch msg.Type {
	case "keydown", "keyup":
		ev := shortcut.KeyEvent{
			Type:      shortcut.EventType(msg.Type),
			Key:       shortcut.KeyIdentifier(msg.Key),
			RawCode:   msg.RawCode,
			Timestamp: k.now(),
		}
		if ts, err := time.Parse(time.RFC3339Nano, msg.Timestamp); err == nil {
			ev.Timestamp = ts
		}
		select {
		case k.events <- ev:
		default:
			k.log.Warn("key event dropped", "key", ev.Key, "type", ev.Type)
		}
	case "heartbeat_ping":
		k.mu.Lock()
		k.lastBeat = k.now()
		k.mu.Unlock()
	case "blocked_keys":
		k.mu.Lock()
		waiters := k.blocked
		k.blocked = nil
		k.mu.Unlock()
		for _, w := range waiters {
			w <- msg.Keys
		}
	default:
		k.log.Debug("unknown key listener message", "type", msg.Type)
	}
}
