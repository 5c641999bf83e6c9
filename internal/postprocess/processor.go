package postprocess

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Processor adjusts a transcript to fit the text already around the cursor.
type Processor struct {
	Enabled bool
}

func New(enabled bool) *Processor {
	return &Processor{Enabled: enabled}
}

// Apply capitalizes the first letter when the transcript starts a sentence
// and adds a leading space when it would otherwise run into existing text.
func (p *Processor) Apply(transcript, existing string) string {
	if !p.Enabled || transcript == "" {
		return transcript
	}

	out := transcript
	if startsSentence(existing) {
		out = capitalizeFirst(out)
	}
	if needsSpace(existing) && !startsWithSpace(out) {
		out = " " + out
	}
	return out
}

func startsSentence(existing string) bool {
	if strings.HasSuffix(existing, "\n") {
		return true
	}
	trimmed := strings.TrimRight(existing, " \t")
	if trimmed == "" {
		return true
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

func needsSpace(existing string) bool {
	if existing == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(existing)
	return !unicode.IsSpace(r)
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}

func capitalizeFirst(s string) string {
	for i, r := range s {
		if unicode.IsLetter(r) {
			if unicode.IsUpper(r) {
				return s
			}
			return s[:i] + string(unicode.ToUpper(r)) + s[i+utf8.RuneLen(r):]
		}
		if !unicode.IsSpace(r) && !unicode.IsPunct(r) {
			return s
		}
	}
	return s
}
