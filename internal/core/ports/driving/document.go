package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// DocumentService uploads, lists and removes documents.
type DocumentService interface {
	// Upload extracts, chunks and indexes each file.
	// Files that fail are reported in UploadResult.Failures; the call only
	// returns an error when no file could be processed.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// List returns all uploaded documents.
	List(ctx context.Context) ([]DocumentDetails, error)

	// Get retrieves a document by ID, including its text.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// Delete removes a document, its text and its index. Idempotent.
	Delete(ctx context.Context, documentID string) error
}

// UploadFile is one document blob in an upload.
type UploadFile struct {
	// Name is the original filename.
	Name string

	// MIMEType is optional; it is inferred from Name when empty.
	MIMEType string

	// Data is the file content.
	Data []byte
}

// UploadRequest is a batch of files, optionally tied to a session.
type UploadRequest struct {
	// SessionID, when set, associates the uploaded documents with the session.
	SessionID string

	Files []UploadFile
}

// UploadFailure describes a file that could not be processed.
type UploadFailure struct {
	Name  string
	Error string
}

// UploadResult reports the processed subset of an upload.
type UploadResult struct {
	DocumentIDs []string
	TotalPages  int
	Failures    []UploadFailure
}

// DocumentDetails provides a display view of a document without its text.
type DocumentDetails struct {
	ID        string
	Filename  string
	Title     string
	MIMEType  string
	Pages     int
	Chars     int
	CreatedAt time.Time
}
