// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm streams chat completions from an OpenAI-compatible backend
// and builds the grounded-answer prompt.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const defaultModel = "gpt-4o-mini"

// Options override the client defaults for one generation. Zero values
// keep the default.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Stream yields answer text pieces. Recv returns io.EOF after the last
// piece. Close must be called once the caller is done, even after io.EOF.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// ChatStreamer starts a streaming generation.
type ChatStreamer interface {
	StreamChat(ctx context.Context, messages []types.ChatMessage, opts Options) (Stream, error)
}

// OpenAI streams from the chat completions API. Concurrent generations are
// capped by a shared gate; a slot is held until the stream is closed.
type OpenAI struct {
	client *openai.Client
	cfg    types.LLMConfig
	gate   *httputil.Gate
	logger *zap.Logger
}

// NewOpenAI returns a streamer for cfg. Either an API key or a base URL
// (for a local compatible server) is required.
func NewOpenAI(cfg types.LLMConfig, httpClient *http.Client, logger *zap.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("LLM requires an API key or a base URL")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	logger.Info("LLM client initialized",
		zap.String("model", cfg.Model),
		zap.Int("max_concurrent", cfg.MaxConcurrent))
	return &OpenAI{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		gate:   httputil.NewGate(cfg.MaxConcurrent),
		logger: logger,
	}, nil
}

// StreamChat implements ChatStreamer. It blocks while the concurrency cap
// is reached.
func (o *OpenAI) StreamChat(ctx context.Context, messages []types.ChatMessage, opts Options) (Stream, error) {
	release, err := o.gate.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for generation slot: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		Messages:    toOpenAI(messages),
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Stream:      true,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.Temperature != 0 {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	s, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		release()
		return nil, fmt.Errorf("starting chat stream: %w", err)
	}
	o.logger.Debug("chat stream started",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)))
	return &openAIStream{stream: s, release: release}, nil
}

type openAIStream struct {
	stream  *openai.ChatCompletionStream
	release func()
	closed  bool
}

// Recv skips frames with no content, such as the role-only first delta.
func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("reading chat stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
		if resp.Choices[0].FinishReason != "" {
			return "", io.EOF
		}
	}
}

func (s *openAIStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stream.Close()
	s.release()
	return nil
}

func toOpenAI(messages []types.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		switch role {
		case types.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case types.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
