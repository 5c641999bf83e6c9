package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/heyito/ito-sub003/internal/shared"
)

const (
	OpenAI = "openai"
	Groq   = "groq"
	Gemini = "gemini"
	Ollama = "ollama"
)

// Segment is one timed span of an ASR result with its quality signals.
type Segment struct {
	Text         string
	AvgLogprob   float64
	NoSpeechProb float64
}

type TranscribeRequest struct {
	WAV    []byte
	Model  string
	Prompt string
}

type Transcription struct {
	Text     string
	Segments []Segment
}

type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Temperature float32
}

type ASR interface {
	Name() string
	Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error)
}

type LLM interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type Registry struct {
	mu  sync.RWMutex
	asr map[string]ASR
	llm map[string]LLM
}

func NewRegistry() *Registry {
	return &Registry{
		asr: make(map[string]ASR),
		llm: make(map[string]LLM),
	}
}

func (r *Registry) RegisterASR(p ASR) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[p.Name()] = p
}

func (r *Registry) RegisterLLM(p LLM) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[p.Name()] = p
}

func (r *Registry) ASR(name string) (ASR, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.asr[name]
	if !ok {
		return nil, fmt.Errorf("asr provider %q not configured: %w", name, shared.ErrProviderUnavailable)
	}
	return p, nil
}

func (r *Registry) LLM(name string) (LLM, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.llm[name]
	if !ok {
		return nil, fmt.Errorf("llm provider %q not configured: %w", name, shared.ErrProviderUnavailable)
	}
	return p, nil
}

// Available lists configured providers as "asr:<name>" and "llm:<name>".
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.asr)+len(r.llm))
	for name := range r.asr {
		out = append(out, "asr:"+name)
	}
	for name := range r.llm {
		out = append(out, "llm:"+name)
	}
	sort.Strings(out)
	return out
}

// FilterSegments joins the segments that pass both thresholds. A zero
// noSpeech or lowQuality disables that check. Results without segments
// fall back to the provider's full text.
func FilterSegments(t Transcription, noSpeech, lowQuality float64) string {
	if len(t.Segments) == 0 {
		return t.Text
	}
	var kept []string
	for _, s := range t.Segments {
		if noSpeech > 0 && s.NoSpeechProb > noSpeech {
			continue
		}
		if lowQuality < 0 && s.AvgLogprob < lowQuality {
			continue
		}
		kept = append(kept, s.Text)
	}
	return joinSegments(kept)
}
