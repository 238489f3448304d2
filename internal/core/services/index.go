package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// embedBatchSize bounds how many chunks are embedded per provider call.
// The record is persisted after every batch.
const embedBatchSize = 64

// DocumentIndex holds the embedded chunks of one document.
// All chunks were embedded by the same provider type and model.
type DocumentIndex struct {
	mu            sync.RWMutex
	documentID    string
	embedder      driven.EmbeddingService
	embeddingType domain.EmbeddingType
	store         driven.IndexStore
	chunkSize     int
	overlap       int
	chunks        []domain.Chunk
	dimensions    int
	now           func() time.Time
}

func newDocumentIndex(
	documentID string,
	embedder driven.EmbeddingService,
	embeddingType domain.EmbeddingType,
	store driven.IndexStore,
	chunker driven.Chunker,
) *DocumentIndex {
	return &DocumentIndex{
		documentID:    documentID,
		embedder:      embedder,
		embeddingType: embeddingType,
		store:         store,
		chunkSize:     chunker.Size(),
		overlap:       chunker.Overlap(),
		now:           time.Now,
	}
}

// indexFromRecord restores an index from its durable form.
func indexFromRecord(
	rec *domain.IndexRecord,
	embedder driven.EmbeddingService,
	store driven.IndexStore,
) *DocumentIndex {
	return &DocumentIndex{
		documentID:    rec.DocumentID,
		embedder:      embedder,
		embeddingType: rec.EmbeddingType,
		store:         store,
		chunkSize:     rec.ChunkSize,
		overlap:       rec.Overlap,
		chunks:        rec.Chunks,
		dimensions:    rec.Dimensions,
		now:           time.Now,
	}
}

// DocumentID returns the document the index belongs to.
func (ix *DocumentIndex) DocumentID() string {
	return ix.documentID
}

// Len returns the number of chunks.
func (ix *DocumentIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Chunks returns a copy of the chunks in index order.
func (ix *DocumentIndex) Chunks() []domain.Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]domain.Chunk(nil), ix.chunks...)
}

// Add embeds texts and appends them as chunks. Empty and whitespace-only
// texts are skipped. The record is persisted after every batch. Returns the
// number of chunks added.
func (ix *DocumentIndex) Add(ctx context.Context, texts []string) (int, error) {
	kept := make([]string, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) != "" {
			kept = append(kept, text)
		}
	}
	if len(kept) == 0 {
		return 0, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	added := 0
	for start := 0; start < len(kept); start += embedBatchSize {
		batch := kept[start:min(start+embedBatchSize, len(kept))]
		if err := ix.addBatch(ctx, batch); err != nil {
			return added, err
		}
		added += len(batch)
	}
	return added, nil
}

func (ix *DocumentIndex) addBatch(ctx context.Context, batch []string) error {
	vectors, err := ix.embedder.EmbedBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vectors), len(batch))
	}

	dims := ix.dimensions
	for _, v := range vectors {
		if dims == 0 {
			dims = len(v)
		}
		if len(v) != dims {
			return fmt.Errorf("embed chunks: vector has %d dimensions, index has %d", len(v), dims)
		}
	}

	before := len(ix.chunks)
	for i, text := range batch {
		ix.chunks = append(ix.chunks, domain.Chunk{
			DocumentID: ix.documentID,
			Index:      before + i,
			Content:    text,
			Embedding:  vectors[i],
		})
	}
	prevDims := ix.dimensions
	ix.dimensions = dims

	if err := ix.persistLocked(ctx); err != nil {
		ix.chunks = ix.chunks[:before]
		ix.dimensions = prevDims
		return err
	}
	return nil
}

// persistLocked writes the whole record. Callers hold ix.mu.
func (ix *DocumentIndex) persistLocked(ctx context.Context) error {
	rec := &domain.IndexRecord{
		DocumentID:    ix.documentID,
		EmbeddingType: ix.embeddingType,
		Model:         ix.embedder.ModelName(),
		Dimensions:    ix.dimensions,
		ChunkSize:     ix.chunkSize,
		Overlap:       ix.overlap,
		Chunks:        ix.chunks,
		UpdatedAt:     ix.now(),
	}
	if err := ix.store.SaveIndex(ctx, rec); err != nil {
		return fmt.Errorf("save index %s: %w", ix.documentID, err)
	}
	return nil
}

// persist writes the record even when it has no chunks.
func (ix *DocumentIndex) persist(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.persistLocked(ctx)
}

// Query returns at most k chunks most similar to question, best first.
// Equal scores are ordered by chunk index. An empty index or k <= 0 yields
// an empty result.
func (ix *DocumentIndex) Query(ctx context.Context, question string, k int) ([]domain.ScoredChunk, error) {
	ix.mu.RLock()
	chunks := ix.chunks
	ix.mu.RUnlock()

	if k <= 0 || len(chunks) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	q, err := ix.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	return rank(chunks, q, ix.embedder.Metric(), k), nil
}

// rank scores chunks against q and returns the top k.
func rank(chunks []domain.Chunk, q []float32, metric domain.SimilarityMetric, k int) []domain.ScoredChunk {
	scored := make([]domain.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, domain.ScoredChunk{Chunk: c, Score: similarity(metric, q, c.Embedding)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Index < scored[j].Chunk.Index
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

func similarity(metric domain.SimilarityMetric, a, b []float32) float64 {
	if metric == domain.MetricDot {
		return dot(a, b)
	}
	return cosine(a, b)
}

// dot returns the inner product, or 0 for vectors of different length.
func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// cosine returns the cosine similarity in [-1, 1], or 0 when either
// vector is zero or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var d, na, nb float64
	for i := range a {
		d += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return d / (math.Sqrt(na) * math.Sqrt(nb))
}

// logIndexError records an index failure with its document.
func logIndexError(op, documentID string, err error) {
	logger.Error("%s %s: %v", op, documentID, err)
}
