package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/heyito/ito-sub003/internal/shared"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-2.0-flash"

const geminiTranscribeInstruction = "Transcribe this audio exactly as spoken, with good grammar and punctuation. Return only the transcript."

// GeminiProvider serves both ASR and chat through one generative model client.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: DefaultGeminiModel}, nil
}

func (g *GeminiProvider) Name() string {
	return Gemini
}

func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

func (g *GeminiProvider) Transcribe(ctx context.Context, req TranscribeRequest) (Transcription, error) {
	model := g.generativeModel(req.Model)
	model.GenerationConfig.SetTemperature(0)

	instruction := geminiTranscribeInstruction
	if req.Prompt != "" {
		instruction += "\nVocabulary hints: " + req.Prompt
	}

	resp, err := model.GenerateContent(ctx,
		genai.Text(instruction),
		genai.Blob{MIMEType: "audio/wav", Data: req.WAV},
	)
	if err != nil {
		return Transcription{}, classifyGemini("transcribe", err)
	}
	return Transcription{Text: responseText(resp)}, nil
}

func (g *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := g.generativeModel(req.Model)
	model.GenerationConfig.SetTemperature(req.Temperature)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", classifyGemini("complete", err)
	}
	return responseText(resp), nil
}

func (g *GeminiProvider) generativeModel(name string) *genai.GenerativeModel {
	if name == "" {
		name = g.model
	}
	return g.client.GenerativeModel(name)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return strings.TrimSpace(b.String())
}

func classifyGemini(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("gemini %s: %w", op, shared.ErrCancelled)
	}
	return fmt.Errorf("gemini %s: %v: %w", op, err, shared.ErrTranscription)
}
