// Package ai builds the embedding and generation adapters from provider settings.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/anthropic"
	"github.com/custodia-labs/docchat/internal/adapters/driven/llm/llamacpp"
	ollamallm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Local model file extensions and the backends that serve them.
const (
	ExtGGUF      = ".gguf"
	ExtLlamafile = ".llamafile"
)

// SettingsSource provides the current provider settings.
type SettingsSource interface {
	Get() (*domain.AppSettings, error)
}

// NewEmbeddingFactory returns a factory that builds the provider configured
// for an embedding type. Settings are read on every call so edits apply on
// the next provider switch.
func NewEmbeddingFactory(settings SettingsSource) driven.EmbeddingFactory {
	return func(embeddingType domain.EmbeddingType) (driven.EmbeddingService, error) {
		s, err := settings.Get()
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		embedding := s.EmbeddingFor(embeddingType)
		return CreateEmbeddingService(&embedding)
	}
}

// CreateEmbeddingService creates the embedding service for settings.
// Unconfigured settings are reported as domain.ErrProviderUnavailable.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding provider is not configured", domain.ErrProviderUnavailable)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: domain.EmbeddingDimensions()[settings.Model],
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			RequestsPerSecond: settings.RequestsPerSecond,
		})

	case domain.AIProviderAnthropic:
		return nil, domain.NewConfigError("embedding.provider", "anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, domain.NewConfigError("embedding.provider", "unsupported provider %q", settings.Provider)
	}
}

// CreateGenerator creates the hosted generator for settings.
// It satisfies driven.HostedGeneratorFactory.
func CreateGenerator(settings domain.LLMSettings) (driven.Generator, error) {
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: %s is not configured", domain.ErrProviderUnavailable, settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewGenerator(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewGenerator(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewGenerator(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, domain.NewConfigError("llm.provider", "unsupported provider %q", settings.Provider)
	}
}

// LocalBackends returns the local backend families keyed by file extension.
func LocalBackends(runtime domain.RuntimeSettings) map[string]driven.LocalBackendFactory {
	cfg := llamacpp.Config{
		Binary:         runtime.LlamaServerBinary,
		Host:           runtime.Host,
		StartupTimeout: runtime.StartupTimeout,
	}
	return map[string]driven.LocalBackendFactory{
		ExtGGUF:      llamacpp.NewGGUFFactory(cfg),
		ExtLlamafile: llamacpp.NewLlamafileFactory(cfg),
	}
}

// ValidateEmbeddingConfig creates a service from settings and pings it.
// Unconfigured settings are not an error.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig creates a generator from settings and pings it when it can.
// Unconfigured settings are not an error.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	gen, err := CreateGenerator(*settings)
	if err != nil {
		return err
	}
	defer gen.Close()

	pinger, ok := gen.(driven.Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return pinger.Ping(ctx)
}
