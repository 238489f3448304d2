package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure ModelService implements the interface.
var _ driving.ModelService = (*ModelService)(nil)

// ModelFormats reports which local model files can be loaded.
type ModelFormats interface {
	Supports(name string) bool
	SupportedExtensions() []string
}

// ModelService stores uploaded local model files.
type ModelService struct {
	store   driven.ModelStore
	formats ModelFormats
}

// NewModelService creates a new model service.
func NewModelService(store driven.ModelStore, formats ModelFormats) *ModelService {
	return &ModelService{store: store, formats: formats}
}

// UploadLocalModel stores a model file under its base name. The extension
// is checked before anything is read or written.
func (s *ModelService) UploadLocalModel(ctx context.Context, filename string, data io.Reader) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: model file name is empty", domain.ErrInvalidInput)
	}
	if !s.formats.Supports(name) {
		err := fmt.Errorf("%w: %q (supported: %s)", domain.ErrUnsupportedModelFormat,
			name, strings.Join(s.formats.SupportedExtensions(), ", "))
		logger.Error("upload model: %v", err)
		return "", err
	}

	path, err := s.store.Put(ctx, name, data)
	if err != nil {
		logger.Error("upload model %s: %v", name, err)
		return "", fmt.Errorf("store model: %w", err)
	}
	logger.Info("Stored model %s", path)
	return path, nil
}

// ListLocalModels returns the paths of uploaded models.
func (s *ModelService) ListLocalModels(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}

// SupportedExtensions returns the loadable model file extensions.
func (s *ModelService) SupportedExtensions() []string {
	return s.formats.SupportedExtensions()
}
