// Package openai provides a generator backed by the OpenAI chat completions API.
// It also drives any OpenAI-compatible server, such as a local llama.cpp server.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Generator implements the interfaces.
var (
	_ driven.StreamingGenerator = (*Generator)(nil)
	_ driven.Pinger             = (*Generator)(nil)
)

// Default configuration values.
const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI generator.
type Config struct {
	// APIKey is the OpenAI API key. Required unless AllowNoKey is set.
	APIKey string

	// AllowNoKey permits an empty key, for local compatible servers.
	AllowNoKey bool

	// BaseURL overrides the API endpoint for Azure or compatible servers.
	BaseURL string

	// Model is the chat model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Generator produces answers with chat completions.
type Generator struct {
	client *goopenai.Client
	model  string
}

// NewGenerator creates a new OpenAI generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" && !cfg.AllowNoKey {
		return nil, fmt.Errorf("%w: openai: API key is required", domain.ErrProviderUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Generator{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Generate returns the full completion for prompt.
func (g *Generator) Generate(
	ctx context.Context,
	prompt string,
	history []domain.Turn,
	opts driven.GenerateOptions,
) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.request(prompt, history, opts))
	if err != nil {
		return "", wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no response choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream streams the completion, calling onDelta for each fragment.
func (g *Generator) GenerateStream(
	ctx context.Context,
	prompt string,
	history []domain.Turn,
	opts driven.GenerateOptions,
	onDelta func(delta string) error,
) (string, error) {
	req := g.request(prompt, history, opts)
	req.Stream = true

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", wrapAPIError(err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return "", wrapAPIError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return "", err
		}
	}
}

func (g *Generator) request(prompt string, history []domain.Turn, opts driven.GenerateOptions) goopenai.ChatCompletionRequest {
	built := driven.BuildMessages(prompt, history, opts.SystemPrompt)
	messages := make([]goopenai.ChatCompletionMessage, len(built))
	for i, msg := range built {
		messages[i] = goopenai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	req := goopenai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		Stop:        opts.StopWords,
	}
	// A zero temperature is dropped from the request body; send the
	// smallest positive value to keep sampling deterministic.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	return req
}

// ModelName returns the name of the model being used.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping validates the API key by listing models.
func (g *Generator) Ping(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// Close releases resources.
func (g *Generator) Close() error {
	return nil
}

// wrapAPIError marks authentication failures as provider unavailability.
func wrapAPIError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) &&
		(apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: openai: %w", domain.ErrProviderUnavailable, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai: status %d: %w", reqErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("openai: %w", err)
}
