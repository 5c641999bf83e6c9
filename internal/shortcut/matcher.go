package shortcut

import (
	"log/slog"
	"sync"
	"time"

	"github.com/heyito/ito-sub003/internal/shared"
)

const DefaultStaleKeyAge = 5 * time.Second

type TriggerKind int

const (
	TriggerStart TriggerKind = iota
	TriggerModeChange
	TriggerStop
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerStart:
		return "start"
	case TriggerModeChange:
		return "mode_change"
	case TriggerStop:
		return "stop"
	}
	return "unknown"
}

type Trigger struct {
	Kind TriggerKind
	Mode shared.Mode
}

// Matcher turns key events into edge-triggered session commands.
type Matcher struct {
	mu         sync.Mutex
	bindings   []Binding
	keys       *KeyState
	prevHeld   map[int]bool
	active     bool
	mode       shared.Mode
	staleAfter time.Duration
	log        *slog.Logger
}

func NewMatcher(bindings []Binding, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		bindings:   bindings,
		keys:       NewKeyState(),
		prevHeld:   make(map[int]bool),
		staleAfter: DefaultStaleKeyAge,
		log:        logger,
	}
}

// SetBindings swaps the binding set. Chords already held at the time of the
// swap do not fire until released and pressed again.
func (m *Matcher) SetBindings(bindings []Binding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings = bindings
	m.prevHeld = m.heldBindings()
	m.active = false
	m.mode = ""
}

func (m *Matcher) Bindings() []Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Binding, len(m.bindings))
	copy(out, m.bindings)
	return out
}

func (m *Matcher) Handle(ev KeyEvent) []Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.keys.Apply(ev) {
		return nil
	}
	return m.evaluate()
}

func (m *Matcher) IsHeld(c Chord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys.IsHeld(c)
}

func (m *Matcher) Active() (shared.Mode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode, m.active
}

// Sweep clears keys whose key-up was missed. Keys belonging to a chord that
// is currently held are kept.
func (m *Matcher) Sweep(now time.Time) []Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := make(map[string]bool)
	if m.active {
		for i := range m.prevHeld {
			for _, k := range m.bindings[i].Chord {
				keep[k] = true
			}
		}
	}
	dropped := m.keys.sweep(now, m.staleAfter, func(k string) bool {
		if keep[k] {
			return true
		}
		base := modifierBase(k)
		return base != k && keep[base]
	})
	if len(dropped) == 0 {
		return nil
	}
	m.log.Warn("clearing stuck keys", "keys", dropped)
	return m.evaluate()
}

func (m *Matcher) heldBindings() map[int]bool {
	held := make(map[int]bool)
	for i, b := range m.bindings {
		if m.keys.IsHeld(b.Chord) {
			held[i] = true
		}
	}
	return held
}

func (m *Matcher) evaluate() []Trigger {
	held := m.heldBindings()
	defer func() { m.prevHeld = held }()

	if !m.active {
		if i, ok := m.longestRising(held); ok {
			m.active = true
			m.mode = m.bindings[i].Mode
			return []Trigger{{Kind: TriggerStart, Mode: m.mode}}
		}
		return nil
	}

	if len(held) == 0 {
		mode := m.mode
		m.active = false
		m.mode = ""
		return []Trigger{{Kind: TriggerStop, Mode: mode}}
	}

	if i, ok := m.longestRising(held); ok && m.bindings[i].Mode != m.mode {
		m.mode = m.bindings[i].Mode
		return []Trigger{{Kind: TriggerModeChange, Mode: m.mode}}
	}
	return nil
}

// longestRising picks the newly held binding with the most keys.
func (m *Matcher) longestRising(held map[int]bool) (int, bool) {
	best := -1
	for i := range m.bindings {
		if !held[i] || m.prevHeld[i] {
			continue
		}
		if best < 0 || len(m.bindings[i].Chord) > len(m.bindings[best].Chord) {
			best = i
		}
	}
	return best, best >= 0
}
