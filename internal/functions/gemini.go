package functions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrGeminiKeyMissing is returned when the Gemini function runs without an API key.
var ErrGeminiKeyMissing = errors.New("GEMINI_API_KEY is not set in the environment variables")

// GeminiConfig holds the generation settings for chat-with-gemini.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	TopP            float32
	TopK            float32
}

// GeminiModel calls the Gemini API through the genai SDK.
type GeminiModel struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiModel builds the model. Without an API key the model is still usable
// but every call fails with ErrGeminiKeyMissing.
func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	m := &GeminiModel{cfg: cfg}
	if cfg.APIKey == "" {
		return m, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	m.client = client
	return m, nil
}

// Generate sends message as a single user turn.
func (m *GeminiModel) Generate(ctx context.Context, message string) (string, error) {
	if m.client == nil {
		return "", ErrGeminiKeyMissing
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.cfg.Model, genai.Text(message), m.generationConfig())
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("Unexpected response structure from Gemini API")
	}
	return text, nil
}

func (m *GeminiModel) generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.cfg.Temperature),
		TopP:            genai.Ptr(m.cfg.TopP),
		TopK:            genai.Ptr(m.cfg.TopK),
		MaxOutputTokens: m.cfg.MaxOutputTokens,
	}
}
