package driving

import (
	"context"
	"io"
)

// ModelService manages uploaded local model files.
type ModelService interface {
	// UploadLocalModel stores a model file and returns its resolved path.
	// Unsupported extensions are rejected with domain.ErrUnsupportedModelFormat
	// before anything is written.
	UploadLocalModel(ctx context.Context, filename string, data io.Reader) (string, error)

	// ListLocalModels returns the paths of uploaded models.
	ListLocalModels(ctx context.Context) ([]string, error)

	// SupportedExtensions returns the model file extensions that can be loaded.
	SupportedExtensions() []string
}
