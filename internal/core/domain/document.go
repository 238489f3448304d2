package domain

import "time"

// Document represents an uploaded document with its extracted text.
// The text is kept so a document's index can be rebuilt deterministically.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the name the document was uploaded with.
	Filename string

	// Title is the human-readable title.
	Title string

	// MIMEType is the content type the text was extracted from.
	MIMEType string

	// Pages is the number of pages reported by the extractor.
	Pages int

	// Content is the full extracted text before chunking.
	Content string

	// Metadata contains extractor-specific key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time
}

// Chunk represents a retrievable unit within a document.
// Chunks are immutable once created and owned by their document's index.
type Chunk struct {
	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the ordinal position within the document.
	Index int

	// Content is the text content of this chunk.
	Content string

	// Embedding is the vector representation used for similarity search.
	Embedding []float32
}

// ScoredChunk is a chunk returned by a similarity query.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// SimilarityMetric is the scoring function an embedding provider's vectors use.
type SimilarityMetric string

// Available similarity metrics.
const (
	// MetricCosine normalises both vectors before the dot product.
	MetricCosine SimilarityMetric = "cosine"

	// MetricDot is the raw inner product, for providers returning unit vectors.
	MetricDot SimilarityMetric = "dot"
)

// IndexRecord is the durable form of one document's vector index.
// All chunks were embedded by the same provider type and model.
type IndexRecord struct {
	DocumentID    string
	EmbeddingType EmbeddingType
	Model         string
	Dimensions    int

	// ChunkSize and Overlap are the chunker parameters the chunks were cut with.
	ChunkSize int
	Overlap   int

	Chunks    []Chunk
	UpdatedAt time.Time
}

// CompatibleWith reports whether the record's vectors were produced by the
// given provider type and model.
func (r *IndexRecord) CompatibleWith(embeddingType EmbeddingType, model string) bool {
	return r.EmbeddingType == embeddingType && r.Model == model
}
