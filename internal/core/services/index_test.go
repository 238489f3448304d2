package services

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// failingIndexStore fails every save after the first ok saves.
type failingIndexStore struct {
	*memory.IndexStore
	ok    int
	saves int
}

func (s *failingIndexStore) SaveIndex(ctx context.Context, rec *domain.IndexRecord) error {
	s.saves++
	if s.saves > s.ok {
		return errFake
	}
	return s.IndexStore.SaveIndex(ctx, rec)
}

func newTestIndex(docID string) (*DocumentIndex, *fakeEmbedder, *memory.IndexStore) {
	embedder := newFakeEmbedder("hosted-embed")
	store := memory.NewIndexStore()
	return newDocumentIndex(docID, embedder, domain.EmbeddingHosted, store, fakeChunker{}), embedder, store
}

func TestDocumentIndex_Add_SkipsBlankTexts(t *testing.T) {
	idx, _, _ := newTestIndex("doc-1")

	n, err := idx.Add(context.Background(), []string{"Paris is in France.", "", "   \n\t", "Berlin is in Germany."})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	chunks := idx.Chunks()
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, "Berlin is in Germany.", chunks[1].Content)
	assert.Equal(t, "doc-1", chunks[1].DocumentID)
}

func TestDocumentIndex_Add_OnlyBlankTextsIsNoop(t *testing.T) {
	idx, embedder, store := newTestIndex("doc-1")

	n, err := idx.Add(context.Background(), []string{"", "  "})

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, embedder.batchCount())
	_, err = store.LoadIndex(context.Background(), "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentIndex_Add_IndexesContinueAcrossCalls(t *testing.T) {
	idx, _, _ := newTestIndex("doc-1")
	ctx := context.Background()

	_, err := idx.Add(ctx, []string{"a paris", "b france"})
	require.NoError(t, err)
	_, err = idx.Add(ctx, []string{"c berlin"})
	require.NoError(t, err)

	chunks := idx.Chunks()
	require.Len(t, chunks, 3)
	assert.Equal(t, 2, chunks[2].Index)
}

func TestDocumentIndex_Add_PersistsAfterEveryBatch(t *testing.T) {
	idx, embedder, store := newTestIndex("doc-1")
	texts := make([]string, embedBatchSize+5)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d about paris", i)
	}

	n, err := idx.Add(context.Background(), texts)

	require.NoError(t, err)
	assert.Equal(t, len(texts), n)
	assert.Equal(t, 2, embedder.batchCount())

	rec, err := store.LoadIndex(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Len(t, rec.Chunks, len(texts))
	assert.Equal(t, domain.EmbeddingHosted, rec.EmbeddingType)
	assert.Equal(t, "hosted-embed", rec.Model)
	assert.Equal(t, embedder.Dimensions(), rec.Dimensions)
	assert.Equal(t, 100, rec.ChunkSize)
	assert.Equal(t, 0, rec.Overlap)
}

func TestDocumentIndex_Add_SaveFailureKeepsEarlierBatches(t *testing.T) {
	embedder := newFakeEmbedder("hosted-embed")
	store := &failingIndexStore{IndexStore: memory.NewIndexStore(), ok: 1}
	idx := newDocumentIndex("doc-1", embedder, domain.EmbeddingHosted, store, fakeChunker{})
	texts := make([]string, embedBatchSize+1)
	for i := range texts {
		texts[i] = "paris"
	}

	n, err := idx.Add(context.Background(), texts)

	require.Error(t, err)
	assert.Equal(t, embedBatchSize, n)
	assert.Equal(t, embedBatchSize, idx.Len())
}

func TestDocumentIndex_Add_EmbedFailure(t *testing.T) {
	idx, embedder, _ := newTestIndex("doc-1")
	embedder.setErr(errFake)

	_, err := idx.Add(context.Background(), []string{"paris"})

	require.ErrorIs(t, err, errFake)
	assert.Zero(t, idx.Len())
}

func TestDocumentIndex_Query_EmptyIndex(t *testing.T) {
	idx, embedder, _ := newTestIndex("doc-1")

	results, err := idx.Query(context.Background(), "anything", 5)

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Zero(t, embedder.calls)
}

func TestDocumentIndex_Query_NonPositiveK(t *testing.T) {
	idx, _, _ := newTestIndex("doc-1")
	_, err := idx.Add(context.Background(), []string{"paris", "berlin"})
	require.NoError(t, err)

	for _, k := range []int{0, -3} {
		results, err := idx.Query(context.Background(), "paris", k)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestDocumentIndex_Query_RanksBySimilarity(t *testing.T) {
	idx, _, _ := newTestIndex("doc-1")
	_, err := idx.Add(context.Background(), []string{
		"Berlin is the capital of Germany.",
		"Paris is the capital of France.",
		"The Seine river flows through Paris.",
	})
	require.NoError(t, err)

	results, err := idx.Query(context.Background(), "What is the capital of France?", 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Chunk.Index)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	for _, r := range results {
		assert.LessOrEqual(t, r.Score, 1.0+1e-9)
	}
}

func TestDocumentIndex_Query_KLargerThanIndex(t *testing.T) {
	idx, _, _ := newTestIndex("doc-1")
	_, err := idx.Add(context.Background(), []string{"paris", "berlin"})
	require.NoError(t, err)

	results, err := idx.Query(context.Background(), "paris", 10)

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRank_TiesOrderedByChunkIndex(t *testing.T) {
	same := []float32{1, 0}
	chunks := []domain.Chunk{
		{Index: 2, Embedding: same},
		{Index: 0, Embedding: same},
		{Index: 1, Embedding: []float32{0, 1}},
		{Index: 3, Embedding: same},
	}

	results := rank(chunks, []float32{1, 0}, domain.MetricCosine, 3)

	require.Len(t, results, 3)
	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.Equal(t, 2, results[1].Chunk.Index)
	assert.Equal(t, 3, results[2].Chunk.Index)
}

func TestSimilarity(t *testing.T) {
	a := []float32{3, 4}
	b := []float32{6, 8}

	assert.InDelta(t, 1.0, similarity(domain.MetricCosine, a, b), 1e-9)
	assert.InDelta(t, 50.0, similarity(domain.MetricDot, a, b), 1e-9)
	assert.Zero(t, cosine([]float32{0, 0}, b))
	assert.Zero(t, cosine(a, []float32{1}))
	assert.Zero(t, dot(a, []float32{1}))
	assert.InDelta(t, -1.0, cosine(a, []float32{-3, -4}), 1e-9)
	assert.False(t, math.IsNaN(cosine([]float32{0}, []float32{0})))
}

func TestIndexFromRecord(t *testing.T) {
	rec := &domain.IndexRecord{
		DocumentID:    "doc-9",
		EmbeddingType: domain.EmbeddingLocal,
		Model:         "local-embed",
		Dimensions:    2,
		ChunkSize:     500,
		Overlap:       50,
		Chunks:        []domain.Chunk{{DocumentID: "doc-9", Index: 0, Content: "x", Embedding: []float32{1, 0}}},
	}
	embedder := newFakeEmbedder("local-embed")

	idx := indexFromRecord(rec, embedder, memory.NewIndexStore())

	assert.Equal(t, "doc-9", idx.DocumentID())
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 500, idx.chunkSize)
	assert.Equal(t, 50, idx.overlap)
}

var _ driven.IndexStore = (*failingIndexStore)(nil)
