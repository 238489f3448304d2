// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
// One instance is active at a time; the IndexRegistry owns it.
//
// Implementations include:
//   - Hosted: OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Local: Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one vector per text
	// in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	// Fixed for the lifetime of the instance.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Metric returns how vectors from this provider are compared.
	Metric() domain.SimilarityMetric

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingFactory builds the embedding provider for an embedding type.
// Returns an error wrapping domain.ErrProviderUnavailable when the
// provider cannot be constructed (e.g. missing API key).
type EmbeddingFactory func(embeddingType domain.EmbeddingType) (EmbeddingService, error)
