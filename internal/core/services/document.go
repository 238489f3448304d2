package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// Indexer builds and removes document indexes.
type Indexer interface {
	Index(ctx context.Context, doc *domain.Document) (*DocumentIndex, error)
	Delete(ctx context.Context, documentID string) error
}

// DocumentService extracts, stores and indexes uploaded documents.
type DocumentService struct {
	normalisers driven.NormaliserRegistry
	indexer     Indexer
	docs        driven.DocumentStore
	sessions    driving.SessionService
	newID       func() string
	now         func() time.Time
}

// NewDocumentService creates a new document service.
// sessions may be nil when uploads are never tied to a session.
func NewDocumentService(
	normalisers driven.NormaliserRegistry,
	indexer Indexer,
	docs driven.DocumentStore,
	sessions driving.SessionService,
) *DocumentService {
	return &DocumentService{
		normalisers: normalisers,
		indexer:     indexer,
		docs:        docs,
		sessions:    sessions,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Upload processes each file independently. Successful documents are
// indexed and, when a session is given, associated with it.
func (s *DocumentService) Upload(ctx context.Context, req driving.UploadRequest) (*driving.UploadResult, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: no files to upload", domain.ErrInvalidInput)
	}
	if req.SessionID != "" {
		if s.sessions == nil {
			return nil, fmt.Errorf("%w: sessions are not available", domain.ErrInvalidInput)
		}
		if _, err := s.sessions.Get(ctx, req.SessionID); err != nil {
			logger.Error("upload to session %s: %v", req.SessionID, err)
			return nil, err
		}
	}

	logger.Section("Upload")
	result := &driving.UploadResult{DocumentIDs: []string{}}
	var errs []error
	for _, file := range req.Files {
		doc, err := s.uploadOne(ctx, file)
		if err != nil {
			logger.Error("upload %s: %v", file.Name, err)
			result.Failures = append(result.Failures, driving.UploadFailure{Name: file.Name, Error: err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", file.Name, err))
			continue
		}
		result.DocumentIDs = append(result.DocumentIDs, doc.ID)
		result.TotalPages += doc.Pages
	}

	if len(result.DocumentIDs) == 0 {
		return nil, fmt.Errorf("upload failed: %w", errors.Join(errs...))
	}

	if req.SessionID != "" {
		if _, err := s.sessions.AddDocuments(ctx, req.SessionID, result.DocumentIDs...); err != nil {
			logger.Error("associate documents with session %s: %v", req.SessionID, err)
			return result, err
		}
	}

	logger.Info("Uploaded %d document(s), %d page(s), %d failure(s)",
		len(result.DocumentIDs), result.TotalPages, len(result.Failures))
	return result, nil
}

func (s *DocumentService) uploadOne(ctx context.Context, file driving.UploadFile) (*domain.Document, error) {
	if strings.TrimSpace(file.Name) == "" {
		return nil, fmt.Errorf("%w: file name is empty", domain.ErrInvalidInput)
	}
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}

	result, err := s.normalisers.Normalise(ctx, &domain.RawDocument{
		Filename: file.Name,
		MIMEType: file.MIMEType,
		Content:  file.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	doc := result.Document
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%w: no extractable text", domain.ErrInvalidInput)
	}
	doc.ID = s.newID()
	doc.Filename = file.Name
	doc.CreatedAt = s.now()

	idx, err := s.indexer.Index(ctx, &doc)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	logger.Debug("%s -> %s: %d page(s), %d chunk(s)", file.Name, doc.ID, doc.Pages, idx.Len())
	return &doc, nil
}

// List returns all uploaded documents, oldest first.
func (s *DocumentService) List(ctx context.Context) ([]driving.DocumentDetails, error) {
	docs, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	details := make([]driving.DocumentDetails, len(docs))
	for i, doc := range docs {
		details[i] = driving.DocumentDetails{
			ID:        doc.ID,
			Filename:  doc.Filename,
			Title:     doc.Title,
			MIMEType:  doc.MIMEType,
			Pages:     doc.Pages,
			Chars:     utf8.RuneCountInString(doc.Content),
			CreatedAt: doc.CreatedAt,
		}
	}
	return details, nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docs.GetDocument(ctx, documentID)
}

// Delete removes a document with its text and index.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if err := s.indexer.Delete(ctx, documentID); err != nil {
		logger.Error("delete document %s: %v", documentID, err)
		return err
	}
	return nil
}
