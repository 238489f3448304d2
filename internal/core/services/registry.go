package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// maxLoadAttempts bounds retries when the provider changes during a load.
const maxLoadAttempts = 3

// IndexRegistry maps document IDs to their indexes and owns the single
// active embedding provider. It reads the embedding type from the model
// configuration on every embedding path and swaps the provider when it
// changed, clearing every loaded index.
type IndexRegistry struct {
	mu           sync.RWMutex
	provider     driven.EmbeddingService
	providerType domain.EmbeddingType
	indexes      map[string]*DocumentIndex

	factory  driven.EmbeddingFactory
	config   ModelConfigSource
	docs     driven.DocumentStore
	store    driven.IndexStore
	chunker  driven.Chunker
	docLocks *keyedMutex
}

// NewIndexRegistry creates a registry. No provider is built until the
// first embedding path runs.
func NewIndexRegistry(
	factory driven.EmbeddingFactory,
	config ModelConfigSource,
	docs driven.DocumentStore,
	store driven.IndexStore,
	chunker driven.Chunker,
) *IndexRegistry {
	return &IndexRegistry{
		indexes:  make(map[string]*DocumentIndex),
		factory:  factory,
		config:   config,
		docs:     docs,
		store:    store,
		chunker:  chunker,
		docLocks: newKeyedMutex(),
	}
}

// ActiveType returns the embedding type of the current provider, or "" if
// none has been built yet.
func (r *IndexRegistry) ActiveType() domain.EmbeddingType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providerType
}

// Loaded returns how many indexes are held in memory.
func (r *IndexRegistry) Loaded() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.indexes)
}

// UpdateEmbeddingProvider switches to a provider of newType. It is a no-op
// when that type is already active. On a switch every loaded index is
// dropped; durable records are rebuilt on their next load.
func (r *IndexRegistry) UpdateEmbeddingProvider(newType domain.EmbeddingType) error {
	newType = domain.ParseEmbeddingType(newType.String())
	if !newType.IsValid() {
		return domain.NewConfigError(domain.FieldEmbeddingType, "unknown embedding type %q", newType)
	}

	r.mu.RLock()
	same := r.provider != nil && r.providerType == newType
	r.mu.RUnlock()
	if same {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.provider != nil && r.providerType == newType {
		return nil
	}

	provider, err := r.factory(newType)
	if err != nil {
		return fmt.Errorf("create %s embedding provider: %w", newType, err)
	}

	old, oldType := r.provider, r.providerType
	r.provider = provider
	r.providerType = newType
	dropped := len(r.indexes)
	r.indexes = make(map[string]*DocumentIndex)

	if old != nil {
		if err := old.Close(); err != nil {
			logger.Warn("close %s embedding provider: %v", oldType, err)
		}
		logger.Info("Embedding provider switched %s -> %s (%s), %d index(es) dropped",
			oldType, newType, provider.ModelName(), dropped)
	} else {
		logger.Debug("Embedding provider %s (%s) created", newType, provider.ModelName())
	}
	return nil
}

// reconcile brings the provider in line with the configured embedding type
// and returns it.
func (r *IndexRegistry) reconcile() (driven.EmbeddingService, domain.EmbeddingType, error) {
	if err := r.UpdateEmbeddingProvider(r.config.Get().EmbeddingType); err != nil {
		return nil, "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.provider, r.providerType, nil
}

// GetOrCreate returns the index for documentID, loading it from durable
// storage on first use. A missing record gives an empty index unless the
// document text exists, in which case the index is rebuilt. A corrupt
// record, or one embedded by another provider or model, is rebuilt from
// the document text.
func (r *IndexRegistry) GetOrCreate(ctx context.Context, documentID string) (*DocumentIndex, error) {
	for range maxLoadAttempts {
		provider, providerType, err := r.reconcile()
		if err != nil {
			return nil, err
		}

		r.mu.RLock()
		idx, ok := r.indexes[documentID]
		r.mu.RUnlock()
		if ok {
			return idx, nil
		}

		idx, err = r.loadLocked(ctx, documentID, provider, providerType)
		if err != nil {
			return nil, err
		}
		if idx != nil {
			return idx, nil
		}
		// The provider changed while loading; try again with the new one.
	}
	return nil, fmt.Errorf("load index %s: embedding provider kept changing", documentID)
}

// loadLocked loads one document under its lock and registers the result if
// provider is still active. Returns nil, nil if it is not.
func (r *IndexRegistry) loadLocked(
	ctx context.Context, documentID string, provider driven.EmbeddingService, providerType domain.EmbeddingType,
) (*DocumentIndex, error) {
	unlock := r.docLocks.Lock(documentID)
	defer unlock()

	r.mu.RLock()
	idx, ok := r.indexes[documentID]
	r.mu.RUnlock()
	if ok {
		return idx, nil
	}

	idx, err := r.load(ctx, documentID, provider, providerType)
	if err != nil {
		logIndexError("load index", documentID, err)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.provider != provider {
		return nil, nil
	}
	r.indexes[documentID] = idx
	return idx, nil
}

func (r *IndexRegistry) load(
	ctx context.Context, documentID string, provider driven.EmbeddingService, providerType domain.EmbeddingType,
) (*DocumentIndex, error) {
	rec, err := r.store.LoadIndex(ctx, documentID)
	switch {
	case err == nil && rec.CompatibleWith(providerType, provider.ModelName()):
		logger.Debug("Loaded index %s: %d chunk(s)", documentID, len(rec.Chunks))
		return indexFromRecord(rec, provider, r.store), nil

	case err == nil:
		logger.Info("Index %s was embedded with %s/%s, rebuilding for %s/%s",
			documentID, rec.EmbeddingType, rec.Model, providerType, provider.ModelName())
		return r.rebuild(ctx, documentID, provider, providerType, false)

	case errors.Is(err, domain.ErrIndexCorrupt):
		logger.Warn("Index %s is corrupt, rebuilding: %v", documentID, err)
		return r.rebuild(ctx, documentID, provider, providerType, true)

	case errors.Is(err, domain.ErrNotFound):
		return r.rebuild(ctx, documentID, provider, providerType, false)

	default:
		return nil, fmt.Errorf("load index %s: %w", documentID, err)
	}
}

// rebuild re-chunks and re-embeds the stored document text. Without the
// text the result is an empty index, or ErrDataLoss when the old record
// was corrupt.
func (r *IndexRegistry) rebuild(
	ctx context.Context, documentID string, provider driven.EmbeddingService, providerType domain.EmbeddingType,
	corrupt bool,
) (*DocumentIndex, error) {
	doc, err := r.docs.GetDocument(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		if corrupt {
			return nil, fmt.Errorf("index %s: %w", documentID, domain.ErrDataLoss)
		}
		if err := r.store.DeleteIndex(ctx, documentID); err != nil {
			logger.Warn("delete stale index %s: %v", documentID, err)
		}
		return newDocumentIndex(documentID, provider, providerType, r.store, r.chunker), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}

	return r.build(ctx, doc, provider, providerType)
}

// build chunks and embeds a document into a fresh, persisted index.
func (r *IndexRegistry) build(
	ctx context.Context, doc *domain.Document, provider driven.EmbeddingService, providerType domain.EmbeddingType,
) (*DocumentIndex, error) {
	texts, err := r.chunker.Split(doc.Content)
	if err != nil {
		return nil, err
	}

	idx := newDocumentIndex(doc.ID, provider, providerType, r.store, r.chunker)
	n, err := idx.Add(ctx, texts)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if err := idx.persist(ctx); err != nil {
			return nil, err
		}
	}
	logger.Debug("Indexed %s: %d chunk(s) with %s", doc.ID, n, provider.ModelName())
	return idx, nil
}

// Index stores the document text and builds its index, replacing any
// previous index for the same ID.
func (r *IndexRegistry) Index(ctx context.Context, doc *domain.Document) (*DocumentIndex, error) {
	for range maxLoadAttempts {
		provider, providerType, err := r.reconcile()
		if err != nil {
			return nil, err
		}

		idx, err := r.indexLocked(ctx, doc, provider, providerType)
		if err != nil {
			logIndexError("index document", doc.ID, err)
			return nil, err
		}
		if idx != nil {
			return idx, nil
		}
	}
	unlock := r.docLocks.Lock(doc.ID)
	r.discard(ctx, doc.ID)
	unlock()
	return nil, fmt.Errorf("index %s: embedding provider kept changing", doc.ID)
}

// discard removes the stored text and any partly written index of a
// document whose indexing failed. The caller holds the document lock.
func (r *IndexRegistry) discard(ctx context.Context, documentID string) {
	if err := r.store.DeleteIndex(ctx, documentID); err != nil {
		logger.Warn("discard index %s: %v", documentID, err)
	}
	if err := r.docs.DeleteDocument(ctx, documentID); err != nil {
		logger.Warn("discard document %s: %v", documentID, err)
	}
}

func (r *IndexRegistry) indexLocked(
	ctx context.Context, doc *domain.Document, provider driven.EmbeddingService, providerType domain.EmbeddingType,
) (*DocumentIndex, error) {
	unlock := r.docLocks.Lock(doc.ID)
	defer unlock()

	if err := r.docs.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	idx, err := r.build(ctx, doc, provider, providerType)
	if err != nil {
		r.discard(ctx, doc.ID)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.provider != provider {
		return nil, nil
	}
	r.indexes[doc.ID] = idx
	return idx, nil
}

// Query returns the top k chunks of every listed document, merged and
// ordered by score. Equal scores keep document order, then chunk order.
func (r *IndexRegistry) Query(
	ctx context.Context, documentIDs []string, question string, k int,
) ([]domain.ScoredChunk, error) {
	var merged []domain.ScoredChunk
	for _, id := range documentIDs {
		idx, err := r.GetOrCreate(ctx, id)
		if err != nil {
			return nil, err
		}
		results, err := idx.Query(ctx, question, k)
		if err != nil {
			logIndexError("query index", id, err)
			return nil, err
		}
		merged = append(merged, results...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged, nil
}

// Delete removes a document's in-memory index, durable index and stored
// text. Deleting an unknown document is not an error.
func (r *IndexRegistry) Delete(ctx context.Context, documentID string) error {
	unlock := r.docLocks.Lock(documentID)
	defer unlock()

	r.mu.Lock()
	delete(r.indexes, documentID)
	r.mu.Unlock()

	if err := r.store.DeleteIndex(ctx, documentID); err != nil {
		return fmt.Errorf("delete index %s: %w", documentID, err)
	}
	if err := r.docs.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

// Close releases the active provider.
func (r *IndexRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.provider == nil {
		return nil
	}
	err := r.provider.Close()
	r.provider = nil
	r.providerType = ""
	r.indexes = make(map[string]*DocumentIndex)
	return err
}
