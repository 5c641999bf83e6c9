package shortcut

import (
	"sort"
	"strings"
)

// Chord is a canonical set of keys that must be held together.
type Chord []string

var modifierPriority = map[string]int{
	"control": 0,
	"option":  1,
	"shift":   2,
	"command": 3,
	"fn":      4,
}

var keyAliases = map[string]string{
	"ctrl":     "control",
	"alt":      "option",
	"opt":      "option",
	"cmd":      "command",
	"meta":     "command",
	"super":    "command",
	"win":      "command",
	"function": "fn",
	"return":   "enter",
	"esc":      "escape",
}

// Normalize dedupes keys case-insensitively and orders modifiers by priority
// followed by the remaining keys alphabetically.
func Normalize(keys []string) Chord {
	seen := make(map[string]bool, len(keys))
	var mods, others []string
	for _, k := range keys {
		c := canonicalKey(k)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		if IsModifier(c) {
			mods = append(mods, c)
		} else {
			others = append(others, c)
		}
	}

	sort.Slice(mods, func(i, j int) bool {
		pi, pj := modifierPriority[modifierBase(mods[i])], modifierPriority[modifierBase(mods[j])]
		if pi != pj {
			return pi < pj
		}
		return mods[i] < mods[j]
	})
	sort.Strings(others)

	chord := make(Chord, 0, len(mods)+len(others))
	chord = append(chord, mods...)
	return append(chord, others...)
}

// Parse splits a "control+space" style string into a normalized chord.
func Parse(s string) Chord {
	if strings.TrimSpace(s) == "" {
		return Chord{}
	}
	return Normalize(strings.Split(s, "+"))
}

func (c Chord) String() string {
	return strings.Join(c, "+")
}

func (c Chord) IsEmpty() bool {
	return len(c) == 0
}

func (c Chord) Equal(other Chord) bool {
	a, b := Normalize(c), Normalize(other)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c Chord) Contains(key string) bool {
	key = canonicalKey(key)
	for _, k := range c {
		if k == key {
			return true
		}
	}
	return false
}

// nonModifiers counts keys that are not modifiers.
func (c Chord) nonModifiers() int {
	n := 0
	for _, k := range c {
		if !IsModifier(k) {
			n++
		}
	}
	return n
}

// IsModifier reports whether key (sided or not) is a modifier.
func IsModifier(key string) bool {
	_, ok := modifierPriority[modifierBase(canonicalKey(key))]
	return ok
}

func canonicalKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" {
		return ""
	}
	base, side := splitSide(k)
	if alias, ok := keyAliases[base]; ok {
		base = alias
	}
	if side != "" {
		return base + "-" + side
	}
	return base
}

// splitSide separates "-left"/"-right" from modifier names only, so that
// non-modifier keys like "arrow-left" stay intact.
func splitSide(k string) (string, string) {
	for _, side := range []string{"left", "right"} {
		suffix := "-" + side
		if !strings.HasSuffix(k, suffix) {
			continue
		}
		base := strings.TrimSuffix(k, suffix)
		resolved := base
		if alias, ok := keyAliases[base]; ok {
			resolved = alias
		}
		if _, ok := modifierPriority[resolved]; ok {
			return base, side
		}
	}
	return k, ""
}

func modifierBase(k string) string {
	base, _ := splitSide(k)
	return base
}
