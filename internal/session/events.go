package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/heyito/ito-sub003/internal/shared"
)

type EventType string

const (
	EventRecordingStarted    EventType = "recording_started"
	EventRecordingStopped    EventType = "recording_stopped"
	EventTranscriptionResult EventType = "transcription_result"
	EventTranscriptionError  EventType = "transcription_error"
	EventVolume              EventType = "volume"
)

const subscriptionBuffer = 128

type Event struct {
	Type       EventType   `json:"type"`
	SessionID  string      `json:"session_id"`
	Mode       shared.Mode `json:"mode,omitempty"`
	Transcript string      `json:"transcript,omitempty"`
	Error      string      `json:"error,omitempty"`
	Kind       shared.Kind `json:"kind,omitempty"`
	Level      float64     `json:"level,omitempty"`
	History    []float64   `json:"history,omitempty"`
	At         time.Time   `json:"at"`
}

// Subscription receives controller events until Close is called.
type Subscription struct {
	ch   chan Event
	bus  *bus
	once sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

type bus struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	log     *slog.Logger
	dropped func(Event)
}

func newBus(log *slog.Logger, dropped func(Event)) *bus {
	return &bus{
		subs:    make(map[*Subscription]struct{}),
		log:     log,
		dropped: dropped,
	}
}

func (b *bus) subscribe() *Subscription {
	s := &Subscription{ch: make(chan Event, subscriptionBuffer), bus: b}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// publish never blocks; a subscriber that falls behind loses events.
func (b *bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			if ev.Type != EventVolume {
				b.log.Warn("subscriber full, dropping event", "type", ev.Type, "session_id", ev.SessionID)
			}
			if b.dropped != nil {
				b.dropped(ev)
			}
		}
	}
}

func (b *bus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
}
