package driving

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// ModelConfigService holds the process-wide model configuration.
type ModelConfigService interface {
	// Get returns the current configuration snapshot.
	Get() domain.ModelConfig

	// Update applies a partial configuration. Every field is validated
	// first; if any is invalid nothing changes and the returned error names
	// the offending fields.
	Update(ctx context.Context, patch domain.ConfigPatch) (domain.ModelConfig, error)

	// Reload re-reads the configuration from storage.
	Reload() error
}

// SettingsService manages provider settings.
type SettingsService interface {
	// Get retrieves current provider settings.
	Get() (*domain.AppSettings, error)

	// Save persists provider settings.
	Save(settings *domain.AppSettings) error

	// SetLLMProvider configures the hosted generation provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetEmbeddingProvider configures the provider behind an embedding type.
	SetEmbeddingProvider(embeddingType domain.EmbeddingType, model, apiKeyOrURL string) error

	// ValidateEmbeddingConfig pings the provider behind an embedding type.
	ValidateEmbeddingConfig(embeddingType domain.EmbeddingType) error

	// ValidateLLMConfig pings the hosted generation provider.
	ValidateLLMConfig() error
}
