package transcription

import (
	"errors"
	"strings"
	"testing"

	"github.com/heyito/ito-sub003/internal/shared"
	"google.golang.org/grpc/metadata"
)

func validMetadata() Metadata {
	return Metadata{
		ASRProvider:         "groq",
		ASRModel:            "whisper-large-v3",
		LLMProvider:         "ollama",
		LLMModel:            "llama3.2:latest",
		LLMTemperature:      0.2,
		Vocabulary:          "Ito, gRPC, O'Brien, AT&T",
		NoSpeechThreshold:   0.6,
		LowQualityThreshold: -0.55,
	}
}

func TestMetadata_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Metadata)
		field  string
	}{
		{"valid", func(*Metadata) {}, ""},
		{"unknown asr provider", func(m *Metadata) { m.ASRProvider = "whisperx" }, "asrProvider"},
		{"ollama cannot transcribe", func(m *Metadata) { m.ASRProvider = "ollama" }, "asrProvider"},
		{"unknown llm provider", func(m *Metadata) { m.LLMProvider = "anthropic" }, "llmProvider"},
		{"empty llm provider ok", func(m *Metadata) { m.LLMProvider = "" }, ""},
		{"model charset", func(m *Metadata) { m.ASRModel = "whisper large" }, "asrModel"},
		{"model length", func(m *Metadata) { m.LLMModel = strings.Repeat("a", 101) }, "llmModel"},
		{"asr prompt length", func(m *Metadata) { m.ASRPrompt = strings.Repeat("p", 101) }, "asrPrompt"},
		{"prompt length", func(m *Metadata) { m.EditingPrompt = strings.Repeat("p", 1501) }, "editingPrompt"},
		{"prompt newline ok", func(m *Metadata) { m.TranscriptionPrompt = "line one\n\tline two" }, ""},
		{"prompt control char", func(m *Metadata) { m.TranscriptionPrompt = "bell\a" }, "transcriptionPrompt"},
		{"vocabulary charset", func(m *Metadata) { m.Vocabulary = "ok, <script>" }, "vocabulary"},
		{"vocabulary word count", func(m *Metadata) { m.Vocabulary = strings.Repeat("w,", 500) + "w" }, "vocabulary"},
		{"vocabulary word length", func(m *Metadata) { m.Vocabulary = strings.Repeat("w", 101) }, "vocabulary"},
		{"temperature high", func(m *Metadata) { m.LLMTemperature = 2.1 }, "llmTemperature"},
		{"temperature negative", func(m *Metadata) { m.LLMTemperature = -0.1 }, "llmTemperature"},
		{"no speech range", func(m *Metadata) { m.NoSpeechThreshold = 1.5 }, "noSpeechThreshold"},
		{"low quality positive", func(m *Metadata) { m.LowQualityThreshold = 0.5 }, "lowQualityThreshold"},
		{"low quality floor", func(m *Metadata) { m.LowQualityThreshold = -11 }, "lowQualityThreshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMetadata()
			tt.mutate(&m)
			err := m.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if !errors.Is(err, shared.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error to name %s, got %v", tt.field, err)
			}
		})
	}
}

func TestMetadata_MDRoundTrip(t *testing.T) {
	in := validMetadata()
	in.ASRPrompt = "Ünïcode prompt, café"
	in.EditingPrompt = "Rewrite politely.\nKeep names."

	md := in.MD()
	if got := md.Get("ito-asr-prompt-bin"); len(got) != 1 || got[0] != in.ASRPrompt {
		t.Errorf("expected binary prompt header, got %v", got)
	}

	out, err := MetadataFromIncoming(md)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestMetadataFromIncoming_BadNumber(t *testing.T) {
	md := metadata.Pairs("ito-asr-provider", "openai", "ito-llm-temperature", "warm")
	_, err := MetadataFromIncoming(md)
	if !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	md = metadata.Pairs("ito-asr-provider", "openai", "ito-no-speech-threshold", "NaN")
	if _, err := MetadataFromIncoming(md); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation for NaN, got %v", err)
	}
}

func TestValidVocabularyWord(t *testing.T) {
	tests := map[string]bool{
		"Kubernetes": true,
		"O'Reilly":   true,
		"AT&T":       true,
		"v1.2-beta":  true,
		"naïve":      true,
		"":           false,
		"semi;colon": false,
		"a,b":        false,
	}
	for w, want := range tests {
		if got := ValidVocabularyWord(w); got != want {
			t.Errorf("ValidVocabularyWord(%q): expected %v, got %v", w, want, got)
		}
	}
}
