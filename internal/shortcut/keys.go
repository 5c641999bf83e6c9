package shortcut

import (
	"sort"
	"strings"
	"time"
)

type EventType string

const (
	KeyDown EventType = "keydown"
	KeyUp   EventType = "keyup"
)

type KeyEvent struct {
	Type      EventType
	Key       string
	RawCode   int
	Timestamp time.Time
}

// KeyState is the set of physically held keys. It is not safe for
// concurrent use; Matcher guards it.
type KeyState struct {
	held map[string]time.Time
}

func NewKeyState() *KeyState {
	return &KeyState{held: make(map[string]time.Time)}
}

// Apply records ev and reports whether the held set changed.
func (s *KeyState) Apply(ev KeyEvent) bool {
	key := canonicalKey(ev.Key)
	if key == "" {
		return false
	}
	switch ev.Type {
	case KeyDown:
		if _, ok := s.held[key]; ok {
			return false
		}
		at := ev.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		s.held[key] = at
		return true
	case KeyUp:
		if _, ok := s.held[key]; !ok {
			return false
		}
		delete(s.held, key)
		return true
	}
	return false
}

// IsHeld reports whether every key of c is held. An unsided modifier is
// satisfied by either side.
func (s *KeyState) IsHeld(c Chord) bool {
	if len(c) == 0 {
		return false
	}
	for _, k := range c {
		if !s.isKeyHeld(k) {
			return false
		}
	}
	return true
}

func (s *KeyState) isKeyHeld(k string) bool {
	if _, ok := s.held[k]; ok {
		return true
	}
	if _, side := splitSide(k); side == "" && IsModifier(k) {
		_, left := s.held[k+"-left"]
		_, right := s.held[k+"-right"]
		return left || right
	}
	return false
}

func (s *KeyState) Held() []string {
	keys := make([]string, 0, len(s.held))
	for k := range s.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *KeyState) Clear() {
	clear(s.held)
}

// sweep drops keys pressed before now-maxAge unless keep says otherwise.
func (s *KeyState) sweep(now time.Time, maxAge time.Duration, keep func(string) bool) []string {
	var dropped []string
	for k, at := range s.held {
		if now.Sub(at) > maxAge && !keep(k) {
			dropped = append(dropped, k)
		}
	}
	for _, k := range dropped {
		delete(s.held, k)
	}
	sort.Strings(dropped)
	return dropped
}

var rawKeyNames = map[string]string{
	"ControlLeft":  "control-left",
	"ControlRight": "control-right",
	"ShiftLeft":    "shift-left",
	"ShiftRight":   "shift-right",
	"MetaLeft":     "command-left",
	"MetaRight":    "command-right",
	"Alt":          "option-left",
	"AltGr":        "option-right",
	"Function":     "fn",
	"Unknown(179)": "fn",
	"Space":        "space",
	"Return":       "enter",
	"Escape":       "escape",
	"Tab":          "tab",
	"Backspace":    "backspace",
	"Delete":       "delete",
	"CapsLock":     "capslock",
	"UpArrow":      "up",
	"DownArrow":    "down",
	"LeftArrow":    "left",
	"RightArrow":   "right",
	"Home":         "home",
	"End":          "end",
	"PageUp":       "pageup",
	"PageDown":     "pagedown",
	"BackQuote":    "`",
	"Minus":        "-",
	"Equal":        "=",
	"Comma":        ",",
	"Dot":          ".",
	"Slash":        "/",
	"SemiColon":    ";",
	"Quote":        "'",
}

var keyRawNames = func() map[string]string {
	m := make(map[string]string, len(rawKeyNames)+5)
	for raw, id := range rawKeyNames {
		if raw == "Unknown(179)" {
			continue
		}
		m[id] = raw
	}
	m["control"] = "ControlLeft"
	m["shift"] = "ShiftLeft"
	m["command"] = "MetaLeft"
	m["option"] = "Alt"
	return m
}()

// KeyIdentifier maps a key listener name such as "MetaLeft" or "KeyA" to a
// key identifier.
func KeyIdentifier(raw string) string {
	if id, ok := rawKeyNames[raw]; ok {
		return id
	}
	switch {
	case strings.HasPrefix(raw, "Key") && len(raw) == 4:
		return strings.ToLower(raw[3:])
	case strings.HasPrefix(raw, "Num") && len(raw) == 4:
		return raw[3:]
	case len(raw) > 1 && raw[0] == 'F' && isDigits(raw[1:]):
		return strings.ToLower(raw)
	}
	return strings.ToLower(raw)
}

// RawNames maps a chord back onto key listener names. Unsided modifiers map
// to their left variant.
func RawNames(c Chord) []string {
	names := make([]string, 0, len(c))
	for _, k := range c {
		names = append(names, rawName(k))
	}
	return names
}

func rawName(k string) string {
	if raw, ok := keyRawNames[k]; ok {
		return raw
	}
	switch {
	case len(k) == 1 && k[0] >= 'a' && k[0] <= 'z':
		return "Key" + strings.ToUpper(k)
	case len(k) == 1 && k[0] >= '0' && k[0] <= '9':
		return "Num" + k
	case len(k) > 1 && k[0] == 'f' && isDigits(k[1:]):
		return strings.ToUpper(k)
	}
	return k
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
