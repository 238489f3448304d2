package services

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyHostedEmbedModel  = "embedding.hosted.model"
	keyHostedEmbedURL    = "embedding.hosted.base_url"
	keyHostedEmbedAPIKey = "embedding.hosted.api_key"
	keyHostedEmbedRPS    = "embedding.hosted.requests_per_second"
	keyLocalEmbedModel   = "embedding.local.model"
	keyLocalEmbedURL     = "embedding.local.base_url"
	keyRuntimeServer     = "runtime.llama_server"
	keyRuntimeHost       = "runtime.host"
	keyRuntimeTimeout    = "runtime.startup_timeout"
	keyChunkSize         = "chunking.size"
	keyChunkOverlap      = "chunking.overlap"
	keyTopK              = "retrieval.top_k"
	keyHistoryTurns      = "retrieval.history_turns"
	keyIndexBackend      = "storage.index"
	keySessionBackend    = "storage.sessions"
)

// apiKeyEnv names the environment variables consulted when no key is configured.
var apiKeyEnv = map[domain.AIProvider]string{
	domain.AIProviderOpenAI:    "OPENAI_API_KEY",
	domain.AIProviderAnthropic: "ANTHROPIC_API_KEY",
}

// SettingsService manages provider, chunking and retrieval settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	llmProvider := s.getProvider(keyLLMProvider, defaults.HostedLLM.Provider)
	settings := &domain.AppSettings{
		HostedLLM: domain.LLMSettings{
			Provider: llmProvider,
			Model:    s.getString(keyLLMModel, defaultLLMModel(llmProvider, defaults.HostedLLM.Model)),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.apiKey(keyLLMAPIKey, llmProvider),
		},
		HostedEmbedding: domain.EmbeddingSettings{
			Provider:          domain.AIProviderOpenAI,
			Model:             s.getString(keyHostedEmbedModel, defaults.HostedEmbedding.Model),
			BaseURL:           s.configStore.GetString(keyHostedEmbedURL),
			APIKey:            s.apiKey(keyHostedEmbedAPIKey, domain.AIProviderOpenAI),
			RequestsPerSecond: s.getFloat(keyHostedEmbedRPS, defaults.HostedEmbedding.RequestsPerSecond),
		},
		LocalEmbedding: domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			Model:    s.getString(keyLocalEmbedModel, defaults.LocalEmbedding.Model),
			BaseURL:  s.getString(keyLocalEmbedURL, defaults.LocalEmbedding.BaseURL),
		},
		Runtime: domain.RuntimeSettings{
			LlamaServerBinary: s.getString(keyRuntimeServer, defaults.Runtime.LlamaServerBinary),
			Host:              s.getString(keyRuntimeHost, defaults.Runtime.Host),
			StartupTimeout:    s.getDuration(keyRuntimeTimeout, defaults.Runtime.StartupTimeout),
		},
		Chunking: domain.ChunkSettings{
			Size:    s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap: s.getIntAllowZero(keyChunkOverlap, defaults.Chunking.Overlap),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:         s.getInt(keyTopK, defaults.Retrieval.TopK),
			HistoryTurns: s.getIntAllowZero(keyHistoryTurns, defaults.Retrieval.HistoryTurns),
		},
		Storage: domain.StorageSettings{
			IndexBackend:   s.getString(keyIndexBackend, defaults.Storage.IndexBackend),
			SessionBackend: s.getString(keySessionBackend, defaults.Storage.SessionBackend),
		},
	}

	return settings, nil
}

// Save persists application settings. Empty API keys are not written so a
// key supplied by the environment is never copied into the file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
		skip  bool
	}{
		{keyLLMProvider, settings.HostedLLM.Provider.String(), false},
		{keyLLMModel, settings.HostedLLM.Model, false},
		{keyLLMBaseURL, settings.HostedLLM.BaseURL, false},
		{keyLLMAPIKey, settings.HostedLLM.APIKey, settings.HostedLLM.APIKey == ""},
		{keyHostedEmbedModel, settings.HostedEmbedding.Model, false},
		{keyHostedEmbedURL, settings.HostedEmbedding.BaseURL, false},
		{keyHostedEmbedAPIKey, settings.HostedEmbedding.APIKey, settings.HostedEmbedding.APIKey == ""},
		{keyHostedEmbedRPS, settings.HostedEmbedding.RequestsPerSecond, false},
		{keyLocalEmbedModel, settings.LocalEmbedding.Model, false},
		{keyLocalEmbedURL, settings.LocalEmbedding.BaseURL, false},
		{keyRuntimeServer, settings.Runtime.LlamaServerBinary, false},
		{keyRuntimeHost, settings.Runtime.Host, false},
		{keyRuntimeTimeout, settings.Runtime.StartupTimeout.String(), false},
		{keyChunkSize, settings.Chunking.Size, false},
		{keyChunkOverlap, settings.Chunking.Overlap, false},
		{keyTopK, settings.Retrieval.TopK, false},
		{keyHistoryTurns, settings.Retrieval.HistoryTurns, false},
		{keyIndexBackend, settings.Storage.IndexBackend, false},
		{keySessionBackend, settings.Storage.SessionBackend, false},
	}

	for _, v := range values {
		if v.skip {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return s.configStore.Save()
}

// SetEmbeddingProvider configures the hosted or local embedding provider.
// For hosted embeddings the last argument is the API key, for local
// embeddings it is the server base URL.
func (s *SettingsService) SetEmbeddingProvider(embeddingType domain.EmbeddingType, model, apiKeyOrURL string) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	switch embeddingType {
	case domain.EmbeddingHosted:
		if apiKeyOrURL == "" && settings.HostedEmbedding.APIKey == "" {
			return fmt.Errorf("API key required for %s", domain.AIProviderOpenAI)
		}
		settings.HostedEmbedding.Model = modelOrDefault(model, domain.AIProviderOpenAI, domain.DefaultEmbeddingModels())
		if apiKeyOrURL != "" {
			settings.HostedEmbedding.APIKey = apiKeyOrURL
		}
	case domain.EmbeddingLocal:
		settings.LocalEmbedding.Model = modelOrDefault(model, domain.AIProviderOllama, domain.DefaultEmbeddingModels())
		if apiKeyOrURL != "" {
			settings.LocalEmbedding.BaseURL = apiKeyOrURL
		}
	default:
		return domain.NewConfigError(domain.FieldEmbeddingType, "must be %q or %q, got %q",
			domain.EmbeddingHosted, domain.EmbeddingLocal, embeddingType)
	}

	return s.Save(settings)
}

// SetLLMProvider configures the hosted LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(apiKeyEnv[provider]) == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.HostedLLM.Provider = provider
	settings.HostedLLM.Model = modelOrDefault(model, provider, domain.DefaultLLMModels())

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.HostedLLM.BaseURL == "" {
			settings.HostedLLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.HostedLLM.BaseURL = ""
	}

	settings.HostedLLM.APIKey = apiKey

	return s.Save(settings)
}

// ValidateEmbeddingConfig validates an embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig(embeddingType domain.EmbeddingType) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	embedding := settings.EmbeddingFor(embeddingType)
	return s.aiValidator.ValidateEmbedding(&embedding)
}

// ValidateLLMConfig validates the hosted LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.HostedLLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats an explicit zero as a value rather than "unset".
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

// apiKey returns the configured key, falling back to the provider's
// environment variable.
func (s *SettingsService) apiKey(key string, provider domain.AIProvider) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	if env, ok := apiKeyEnv[provider]; ok {
		return s.getenv(env)
	}
	return ""
}

func defaultLLMModel(provider domain.AIProvider, fallback string) string {
	if m, ok := domain.DefaultLLMModels()[provider]; ok {
		return m
	}
	return fallback
}

func modelOrDefault(model string, provider domain.AIProvider, defaults map[domain.AIProvider]string) string {
	if model != "" {
		return model
	}
	return defaults[provider]
}
