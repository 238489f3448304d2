package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies a hosted service used for generation or embeddings.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is an Ollama server.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider usually runs on the same machine.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local server)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds the connection details of one embedding provider.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// RequestsPerSecond caps embedding requests. Zero means unlimited.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds the hosted generation provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RuntimeSettings configures how local model files are served.
type RuntimeSettings struct {
	// LlamaServerBinary is the llama.cpp server executable used for .gguf files.
	LlamaServerBinary string

	// Host is the loopback address local servers bind to.
	Host string

	// StartupTimeout bounds how long a model may take to load.
	StartupTimeout time.Duration
}

// ChunkSettings controls how document text is split before embedding.
type ChunkSettings struct {
	Size    int
	Overlap int
}

// RetrievalSettings controls how much context a question receives.
type RetrievalSettings struct {
	// TopK is the number of chunks retrieved per document.
	TopK int

	// HistoryTurns caps the prior turns included in a prompt.
	HistoryTurns int
}

// Storage backends.
const (
	IndexBackendSQLite = "sqlite"
	IndexBackendGob    = "gob"

	SessionBackendJSON   = "json"
	SessionBackendBolt   = "bolt"
	SessionBackendMemory = "memory"
)

// StorageSettings picks the durable store implementations.
type StorageSettings struct {
	// IndexBackend holds documents and index records: sqlite or gob.
	IndexBackend string

	// SessionBackend holds sessions: json, bolt or memory.
	SessionBackend string
}

// AppSettings holds the provider settings that sit beside ModelConfig.
type AppSettings struct {
	// HostedLLM is used when the model type is hosted.
	HostedLLM LLMSettings

	// HostedEmbedding is used when the embedding type is hosted.
	HostedEmbedding EmbeddingSettings

	// LocalEmbedding is used when the embedding type is local.
	LocalEmbedding EmbeddingSettings

	// Runtime configures local model servers.
	Runtime RuntimeSettings

	// Chunking configures the text chunker.
	Chunking ChunkSettings

	// Retrieval configures context assembly.
	Retrieval RetrievalSettings

	// Storage selects store backends. Read once at startup.
	Storage StorageSettings
}

// EmbeddingFor returns the provider settings for an embedding type.
func (s AppSettings) EmbeddingFor(t EmbeddingType) EmbeddingSettings {
	if t == EmbeddingLocal {
		return s.LocalEmbedding
	}
	return s.HostedEmbedding
}

// DefaultAppSettings returns settings with sensible defaults.
// API keys are left empty; they come from the config file or environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		HostedLLM: LLMSettings{
			Provider: AIProviderOpenAI,
			Model:    DefaultLLMModels()[AIProviderOpenAI],
		},
		HostedEmbedding: EmbeddingSettings{
			Provider:          AIProviderOpenAI,
			Model:             DefaultEmbeddingModels()[AIProviderOpenAI],
			RequestsPerSecond: 5,
		},
		LocalEmbedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    DefaultEmbeddingModels()[AIProviderOllama],
			BaseURL:  "http://localhost:11434",
		},
		Runtime: RuntimeSettings{
			LlamaServerBinary: "llama-server",
			Host:              "127.0.0.1",
			StartupTimeout:    2 * time.Minute,
		},
		Chunking: ChunkSettings{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalSettings{
			TopK:         4,
			HistoryTurns: 10,
		},
		Storage: StorageSettings{
			IndexBackend:   IndexBackendSQLite,
			SessionBackend: SessionBackendJSON,
		},
	}
}

// AllLLMProviders returns providers that can serve hosted generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderOllama,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
