// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expansion

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Generator produces free text from a prompt. Implementations must be
// safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	defaultGeminiModel = "gemini-2.0-flash"
	defaultOpenAIModel = "gpt-4o-mini"

	generateMaxTokens   = 400
	generateTemperature = 0.7
)

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini client. baseURL and httpClient are
// optional.
func NewGeminiGenerator(ctx context.Context, apiKey, model, baseURL string, httpClient *http.Client) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini generator requires an api key")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](generateTemperature),
		MaxOutputTokens: generateMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator returns a generator. baseURL and httpClient are optional.
func NewOpenAIGenerator(apiKey, model, baseURL string, httpClient *http.Client) (*OpenAIGenerator, error) {
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("openai generator requires an api key or a base url")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   generateMaxTokens,
		Temperature: generateTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai returned no text")
	}
	return text, nil
}

// NewGenerator builds the configured generator. Provider "none" (or
// empty) returns nil with no error.
func NewGenerator(ctx context.Context, cfg types.ExpansionConfig, httpClient *http.Client) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", types.GeneratorNone:
		return nil, nil
	case types.GeneratorGemini:
		g, err := NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL, httpClient)
		if err != nil {
			return nil, err
		}
		return g, nil
	case types.GeneratorOpenAI:
		g, err := NewOpenAIGenerator(cfg.APIKey, cfg.Model, cfg.BaseURL, httpClient)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown expansion provider %q", cfg.Provider)
	}
}
