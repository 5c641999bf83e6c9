package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/heyito/ito-sub003/internal/shared"
	"github.com/sashabaranov/go-openai"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"

	DefaultOpenAIASRModel = openai.Whisper1
	DefaultOpenAILLMModel = "gpt-4.1"
	DefaultGroqASRModel   = "whisper-large-v3"
	DefaultGroqLLMModel   = "llama-3.3-70b-versatile"
	DefaultOllamaLLMModel = "llama3.2"
)

// Compatible talks to any OpenAI-compatible endpoint: OpenAI itself, Groq and Ollama.
type Compatible struct {
	name     string
	client   *openai.Client
	asrModel string
	llmModel string
}

func NewOpenAI(apiKey string) *Compatible {
	return &Compatible{
		name:     OpenAI,
		client:   openai.NewClient(apiKey),
		asrModel: DefaultOpenAIASRModel,
		llmModel: DefaultOpenAILLMModel,
	}
}

func NewGroq(apiKey string) *Compatible {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	return &Compatible{
		name:     Groq,
		client:   openai.NewClientWithConfig(cfg),
		asrModel: DefaultGroqASRModel,
		llmModel: DefaultGroqLLMModel,
	}
}

// NewOllama points at a local Ollama server, e.g. http://localhost:11434.
// Ollama serves chat completions only.
func NewOllama(baseURL string) *Compatible {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	return &Compatible{
		name:     Ollama,
		client:   openai.NewClientWithConfig(cfg),
		llmModel: DefaultOllamaLLMModel,
	}
}

func (c *Compatible) Name() string {
	return c.name
}

func (c *Compatible) Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error) {
	model := req.Model
	if model == "" {
		model = c.asrModel
	}
	if model == "" {
		return Transcription{}, fmt.Errorf("%s has no transcription model: %w", c.name, shared.ErrProviderUnavailable)
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(req.WAV),
		Prompt:   req.Prompt,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcription{}, classify(c.name, "transcribe", err)
	}

	out := Transcription{Text: strings.TrimSpace(resp.Text)}
	for _, s := range resp.Segments {
		out.Segments = append(out.Segments, Segment{
			Text:         s.Text,
			AvgLogprob:   s.AvgLogprob,
			NoSpeechProb: s.NoSpeechProb,
		})
	}
	return out, nil
}

func (c *Compatible) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.llmModel
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", classify(c.name, "complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s complete: empty response: %w", c.name, shared.ErrTranscription)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classify maps upstream errors onto the shared taxonomy. Auth failures mean
// the provider is misconfigured, everything else is a transcription failure.
func classify(name, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", name, op, shared.ErrCancelled)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: %v: %w", name, op, err, shared.ErrProviderUnavailable)
	default:
		return fmt.Errorf("%s %s: %v: %w", name, op, err, shared.ErrTranscription)
	}
}
