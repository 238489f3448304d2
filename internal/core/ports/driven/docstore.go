package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// DocumentStore persists uploaded documents and their extracted text.
// The text is the source of truth when an index has to be rebuilt.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if absent.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// DeleteDocument removes a document. Deleting a missing document is not an error.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all documents, oldest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}

// IndexStore persists one index record per document.
type IndexStore interface {
	// SaveIndex replaces the stored record for rec.DocumentID.
	SaveIndex(ctx context.Context, rec *domain.IndexRecord) error

	// LoadIndex returns the stored record.
	// Returns domain.ErrNotFound if absent and domain.ErrIndexCorrupt
	// if the record exists but cannot be decoded.
	LoadIndex(ctx context.Context, documentID string) (*domain.IndexRecord, error)

	// DeleteIndex removes a record. Deleting a missing record is not an error.
	DeleteIndex(ctx context.Context, documentID string) error
}

// SessionStore persists one record per session.
type SessionStore interface {
	// SaveSession stores or replaces a session.
	SaveSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session. Returns domain.ErrSessionNotFound if absent.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// DeleteSession removes a session. Returns false if it did not exist.
	DeleteSession(ctx context.Context, id string) (bool, error)

	// ListSessionIDs returns the IDs of all stored sessions.
	ListSessionIDs(ctx context.Context) ([]string, error)
}

// ModelStore keeps uploaded local model binaries.
type ModelStore interface {
	// Put writes a model file and returns its resolved path.
	Put(ctx context.Context, filename string, data io.Reader) (string, error)

	// List returns the paths of stored models.
	List(ctx context.Context) ([]string, error)

	// Dir returns the directory models are stored in.
	Dir() string
}
