package shared

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Mode selects what happens to a transcript once it comes back.
type Mode string

const (
	ModeTranscribe Mode = "transcribe"
	ModeEdit       Mode = "edit"
)

func (m Mode) String() string {
	return string(m)
}

func (m Mode) Valid() bool {
	return m == ModeTranscribe || m == ModeEdit
}

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTranscribe, ModeEdit:
		return Mode(s), nil
	case "dictation":
		return ModeTranscribe, nil
	case "action":
		return ModeEdit, nil
	}
	return "", fmt.Errorf("unknown mode %q: %w", s, ErrValidation)
}

func NewID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

type BackoffConfig struct {
	Initial     time.Duration
	MaxAttempts int
	MaxDelay    time.Duration
}

func NormalizeBackoff(cfg BackoffConfig) BackoffConfig {
	if cfg.Initial <= 0 {
		cfg.Initial = 100 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	return cfg
}

// Next doubles d, capped at MaxDelay.
func (c BackoffConfig) Next(d time.Duration) time.Duration {
	d *= 2
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}
