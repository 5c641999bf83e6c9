package shortcut

import (
	"errors"
	"fmt"
	"os"

	"github.com/heyito/ito-sub003/internal/shared"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyChord   = errors.New("shortcut has no keys")
	ErrTooManyKeys  = errors.New("shortcut has more than one non-modifier key")
	ErrDuplicateKey = errors.New("shortcut is bound to more than one mode")
)

type Binding struct {
	Chord Chord
	Mode  shared.Mode
}

// fallbackCandidates are tried in order when both modes claim the same chord.
func fallbackCandidates(platform string) []Chord {
	var out []Chord
	if platform == "darwin" {
		out = append(out, Normalize([]string{"fn"}))
	}
	return append(out,
		Normalize([]string{"option", "space"}),
		Normalize([]string{"control", "space"}),
		Normalize([]string{"shift", "space"}),
	)
}

// ResolveCrossModeConflicts reassigns every Edit binding whose chord is also
// bound to Transcribe. When no fallback is free, the Edit binding is left
// with an empty chord for Validate to report.
func ResolveCrossModeConflicts(bindings []Binding, platform string) []Binding {
	out := make([]Binding, len(bindings))
	for i, b := range bindings {
		out[i] = Binding{Chord: Normalize(b.Chord), Mode: b.Mode}
	}

	for i, b := range out {
		if b.Mode != shared.ModeEdit || b.Chord.IsEmpty() {
			continue
		}
		if !boundTo(out, b.Chord, shared.ModeTranscribe) {
			continue
		}
		out[i].Chord = pickFallback(out, platform)
	}
	return out
}

func pickFallback(bindings []Binding, platform string) Chord {
	for _, candidate := range fallbackCandidates(platform) {
		if !inUse(bindings, candidate) {
			return candidate
		}
	}
	return Chord{}
}

func boundTo(bindings []Binding, c Chord, mode shared.Mode) bool {
	for _, b := range bindings {
		if b.Mode == mode && b.Chord.Equal(c) {
			return true
		}
	}
	return false
}

func inUse(bindings []Binding, c Chord) bool {
	for _, b := range bindings {
		if !b.Chord.IsEmpty() && b.Chord.Equal(c) {
			return true
		}
	}
	return false
}

// DedupeWithinMode keeps the first binding of each chord per mode.
func DedupeWithinMode(bindings []Binding) []Binding {
	seen := make(map[shared.Mode]map[string]bool)
	out := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		c := Normalize(b.Chord)
		if seen[b.Mode] == nil {
			seen[b.Mode] = make(map[string]bool)
		}
		key := c.String()
		if seen[b.Mode][key] {
			continue
		}
		seen[b.Mode][key] = true
		out = append(out, Binding{Chord: c, Mode: b.Mode})
	}
	return out
}

// Validate reports configuration problems that must reach the user.
func Validate(bindings []Binding) error {
	var errs []error
	owner := make(map[string]shared.Mode)
	for _, b := range bindings {
		if b.Chord.IsEmpty() {
			errs = append(errs, fmt.Errorf("%s: %w", b.Mode, ErrEmptyChord))
			continue
		}
		if b.Chord.nonModifiers() > 1 {
			errs = append(errs, fmt.Errorf("%s %q: %w", b.Mode, b.Chord, ErrTooManyKeys))
		}
		key := Normalize(b.Chord).String()
		if m, ok := owner[key]; ok && m != b.Mode {
			errs = append(errs, fmt.Errorf("%q: %w", key, ErrDuplicateKey))
		}
		owner[key] = b.Mode
	}
	return errors.Join(errs...)
}

// Prepare dedupes, resolves conflicts and validates in one step.
func Prepare(bindings []Binding, platform string) ([]Binding, error) {
	resolved := ResolveCrossModeConflicts(DedupeWithinMode(bindings), platform)
	return resolved, Validate(resolved)
}

func DefaultBindings() []Binding {
	return []Binding{
		{Chord: Normalize([]string{"fn"}), Mode: shared.ModeTranscribe},
		{Chord: Normalize([]string{"control", "fn"}), Mode: shared.ModeEdit},
	}
}

type bindingsFile struct {
	Shortcuts []struct {
		Mode string   `yaml:"mode"`
		Keys []string `yaml:"keys"`
	} `yaml:"shortcuts"`
}

// LoadBindings reads a YAML shortcuts file. A missing path yields the defaults.
func LoadBindings(path string) ([]Binding, error) {
	if path == "" {
		return DefaultBindings(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultBindings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read shortcuts file: %w", err)
	}
	return ParseBindings(data)
}

func ParseBindings(data []byte) ([]Binding, error) {
	var f bindingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse shortcuts file: %w", err)
	}
	bindings := make([]Binding, 0, len(f.Shortcuts))
	for _, s := range f.Shortcuts {
		mode, err := shared.ParseMode(s.Mode)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, Binding{Chord: Normalize(s.Keys), Mode: mode})
	}
	if len(bindings) == 0 {
		return DefaultBindings(), nil
	}
	return bindings, nil
}
