package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Generator produces an answer from a prompt and prior conversation turns.
//
// Implementations include:
//   - Hosted: OpenAI, Anthropic, an Ollama server
//   - Local: model files served by llama.cpp or llamafile
type Generator interface {
	// Generate returns the complete generated text. history holds prior turns
	// sent as separate messages; callers that render history into the prompt
	// pass nil.
	Generate(ctx context.Context, prompt string, history []domain.Turn, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources (e.g. stops a local model server).
	Close() error
}

// StreamingGenerator is implemented by generators that can emit partial output.
// onDelta is called with each fragment; the full text is also returned.
type StreamingGenerator interface {
	Generator

	GenerateStream(
		ctx context.Context,
		prompt string,
		history []domain.Turn,
		opts GenerateOptions,
		onDelta func(delta string) error,
	) (string, error)
}

// Pinger is implemented by generators that can check connectivity cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// SystemPrompt is sent ahead of history when the backend supports it.
	SystemPrompt string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// TopP is the nucleus sampling threshold.
	TopP float64

	// RepeatPenalty discourages repetition. Ignored by backends without it.
	RepeatPenalty float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// OptionsFromConfig maps model configuration onto generation options.
func OptionsFromConfig(cfg domain.ModelConfig) GenerateOptions {
	return GenerateOptions{
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		RepeatPenalty: cfg.RepeatPenalty,
	}
}

// ChatMessage represents a single message sent to a chat-style backend.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// BuildMessages lays out system prompt, history and prompt as chat messages.
func BuildMessages(prompt string, history []domain.Turn, system string) []ChatMessage {
	messages := make([]ChatMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: system})
	}
	for _, turn := range history {
		messages = append(messages, ChatMessage{Role: string(turn.Role), Content: turn.Text})
	}
	return append(messages, ChatMessage{Role: "user", Content: prompt})
}

// HostedGeneratorFactory builds a generator for a hosted provider.
type HostedGeneratorFactory func(settings domain.LLMSettings) (Generator, error)

// LocalBackendFactory loads a local model file and returns a generator for it.
// Loading is expensive; callers cache the result per path.
type LocalBackendFactory func(ctx context.Context, path string, cfg domain.ModelConfig) (Generator, error)
