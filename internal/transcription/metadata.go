package transcription

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/heyito/ito-sub003/internal/provider"
	"github.com/heyito/ito-sub003/internal/shared"
	"google.golang.org/grpc/metadata"
)

const (
	maxModelLen     = 100
	maxASRPromptLen = 100
	maxPromptLen    = 1500
	maxVocabWords   = 500
	maxVocabWordLen = 100
	minLowQuality   = -10.0
	maxTemperature  = 2.0
	mdPrefix        = "ito-"
	mdSessionID     = "ito-session-id"
	mdMode          = "ito-mode"
	mdErrorKind     = "ito-error-kind"
	mdAuthorization = "authorization"
	bearerPrefix    = "Bearer "
)

var (
	modelPattern = regexp.MustCompile(`^[A-Za-z0-9._:/-]+$`)

	asrProviders = map[string]bool{provider.OpenAI: true, provider.Groq: true, provider.Gemini: true}
	llmProviders = map[string]bool{provider.OpenAI: true, provider.Groq: true, provider.Gemini: true, provider.Ollama: true}
)

// Metadata rides on the call headers of every transcription stream.
type Metadata struct {
	ASRProvider         string
	ASRModel            string
	ASRPrompt           string
	LLMProvider         string
	LLMModel            string
	LLMTemperature      float64
	TranscriptionPrompt string
	EditingPrompt       string
	Vocabulary          string
	NoSpeechThreshold   float64
	LowQualityThreshold float64
}

func (m Metadata) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", field, fmt.Sprintf(format, args...)))
	}

	if !asrProviders[m.ASRProvider] {
		fail("asrProvider", "unknown provider %q", m.ASRProvider)
	}
	if m.LLMProvider != "" && !llmProviders[m.LLMProvider] {
		fail("llmProvider", "unknown provider %q", m.LLMProvider)
	}
	if err := checkModel(m.ASRModel); err != nil {
		fail("asrModel", "%v", err)
	}
	if err := checkModel(m.LLMModel); err != nil {
		fail("llmModel", "%v", err)
	}
	if n := len([]rune(m.ASRPrompt)); n > maxASRPromptLen {
		fail("asrPrompt", "%d chars exceeds %d", n, maxASRPromptLen)
	}
	if err := checkPrompt(m.TranscriptionPrompt); err != nil {
		fail("transcriptionPrompt", "%v", err)
	}
	if err := checkPrompt(m.EditingPrompt); err != nil {
		fail("editingPrompt", "%v", err)
	}
	if err := checkVocabulary(m.Vocabulary); err != nil {
		fail("vocabulary", "%v", err)
	}
	if outside(m.LLMTemperature, 0, maxTemperature) {
		fail("llmTemperature", "%v outside [0,%v]", m.LLMTemperature, maxTemperature)
	}
	if outside(m.NoSpeechThreshold, 0, 1) {
		fail("noSpeechThreshold", "%v outside [0,1]", m.NoSpeechThreshold)
	}
	if outside(m.LowQualityThreshold, minLowQuality, 0) {
		fail("lowQualityThreshold", "%v outside [%v,0]", m.LowQualityThreshold, minLowQuality)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid metadata: %w: %w", errors.Join(errs...), shared.ErrValidation)
}

func outside(v, lo, hi float64) bool {
	return math.IsNaN(v) || v < lo || v > hi
}

func checkModel(s string) error {
	if s == "" {
		return nil
	}
	if len(s) > maxModelLen {
		return fmt.Errorf("%d chars exceeds %d", len(s), maxModelLen)
	}
	if !modelPattern.MatchString(s) {
		return fmt.Errorf("invalid characters in %q", s)
	}
	return nil
}

func checkPrompt(s string) error {
	if n := len([]rune(s)); n > maxPromptLen {
		return fmt.Errorf("%d chars exceeds %d", n, maxPromptLen)
	}
	for _, r := range s {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			return fmt.Errorf("control character %U", r)
		}
	}
	return nil
}

// ValidVocabularyWord reports whether w may appear in the vocabulary list.
func ValidVocabularyWord(w string) bool {
	if w == "" || len([]rune(w)) > maxVocabWordLen {
		return false
	}
	for _, r := range w {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case r == ' ', r == '\'', r == '-', r == '.', r == '&':
		default:
			return false
		}
	}
	return true
}

func checkVocabulary(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	words := strings.Split(s, ",")
	if len(words) > maxVocabWords {
		return fmt.Errorf("%d words exceeds %d", len(words), maxVocabWords)
	}
	for _, w := range words {
		if !ValidVocabularyWord(strings.TrimSpace(w)) {
			return fmt.Errorf("invalid word %q", w)
		}
	}
	return nil
}

// MD encodes the metadata as gRPC headers. Free text goes under -bin keys so
// any UTF-8 survives the transport.
func (m Metadata) MD() metadata.MD {
	md := metadata.MD{}
	set := func(k, v string) {
		if v != "" {
			md.Set(mdPrefix+k, v)
		}
	}
	set("asr-provider", m.ASRProvider)
	set("asr-model", m.ASRModel)
	set("asr-prompt-bin", m.ASRPrompt)
	set("llm-provider", m.LLMProvider)
	set("llm-model", m.LLMModel)
	set("llm-temperature", formatFloat(m.LLMTemperature))
	set("transcription-prompt-bin", m.TranscriptionPrompt)
	set("editing-prompt-bin", m.EditingPrompt)
	set("vocabulary-bin", m.Vocabulary)
	set("no-speech-threshold", formatFloat(m.NoSpeechThreshold))
	set("low-quality-threshold", formatFloat(m.LowQualityThreshold))
	return md
}

func MetadataFromIncoming(md metadata.MD) (Metadata, error) {
	get := func(k string) string {
		if v := md.Get(mdPrefix + k); len(v) > 0 {
			return v[0]
		}
		return ""
	}

	m := Metadata{
		ASRProvider:         get("asr-provider"),
		ASRModel:            get("asr-model"),
		ASRPrompt:           get("asr-prompt-bin"),
		LLMProvider:         get("llm-provider"),
		LLMModel:            get("llm-model"),
		TranscriptionPrompt: get("transcription-prompt-bin"),
		EditingPrompt:       get("editing-prompt-bin"),
		Vocabulary:          get("vocabulary-bin"),
	}

	var err error
	if m.LLMTemperature, err = parseFloat("llmTemperature", get("llm-temperature")); err != nil {
		return m, err
	}
	if m.NoSpeechThreshold, err = parseFloat("noSpeechThreshold", get("no-speech-threshold")); err != nil {
		return m, err
	}
	if m.LowQualityThreshold, err = parseFloat("lowQualityThreshold", get("low-quality-threshold")); err != nil {
		return m, err
	}
	return m, nil
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(field, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s: not a number %q: %w", field, s, shared.ErrValidation)
	}
	return f, nil
}

func bearerToken(md metadata.MD) string {
	v := md.Get(mdAuthorization)
	if len(v) == 0 || !strings.HasPrefix(v[0], bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(v[0], bearerPrefix)
}
