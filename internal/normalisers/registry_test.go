package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// stubNormaliser tags documents with its name.
type stubNormaliser struct {
	name     string
	types    []string
	priority int
}

func (s *stubNormaliser) SupportedMIMETypes() []string { return s.types }
func (s *stubNormaliser) Priority() int                { return s.priority }
func (s *stubNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	return &driven.NormaliseResult{Document: NewDocument(raw, "", string(raw.Content), s.name, 1)}, nil
}

func TestRegistry_HighestPriorityWins(t *testing.T) {
	fallback := &stubNormaliser{name: "fallback", types: []string{"text/markdown", "text/plain"}, priority: 5}
	markdown := &stubNormaliser{name: "markdown", types: []string{"text/markdown"}, priority: 50}
	r := NewRegistry(fallback, markdown)

	result, err := r.Normalise(context.Background(), &domain.RawDocument{Filename: "a.md", MIMEType: "text/markdown"})
	require.NoError(t, err)
	assert.Equal(t, "markdown", result.Document.Metadata["format"])

	result, err = r.Normalise(context.Background(), &domain.RawDocument{Filename: "a.txt", MIMEType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Document.Metadata["format"])
}

func TestRegistry_InfersTypeFromFilename(t *testing.T) {
	pdf := &stubNormaliser{name: "pdf", types: []string{"application/pdf"}, priority: 50}
	r := NewRegistry(pdf)

	raw := &domain.RawDocument{Filename: "Report.PDF", MIMEType: "application/octet-stream"}
	result, err := r.Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "pdf", result.Document.Metadata["format"])
	assert.Equal(t, "application/pdf", result.Document.MIMEType)
}

func TestRegistry_StripsMIMEParameters(t *testing.T) {
	r := NewRegistry(&stubNormaliser{name: "text", types: []string{"text/plain"}, priority: 5})

	_, err := r.Normalise(context.Background(), &domain.RawDocument{Filename: "x", MIMEType: "Text/Plain; charset=utf-8"})
	assert.NoError(t, err)
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewRegistry(&stubNormaliser{name: "pdf", types: []string{"application/pdf"}, priority: 50})

	_, err := r.Normalise(context.Background(), &domain.RawDocument{Filename: "photo.png"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = r.Normalise(context.Background(), &domain.RawDocument{Filename: "no-extension"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = r.Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_SupportedMIMETypes(t *testing.T) {
	r := NewRegistry(
		&stubNormaliser{types: []string{"text/plain", "text/markdown"}},
		&stubNormaliser{types: []string{"application/pdf", "text/markdown"}},
	)
	assert.Equal(t, []string{"application/pdf", "text/markdown", "text/plain"}, r.SupportedMIMETypes())
}

func TestDetectMIMEType(t *testing.T) {
	assert.Equal(t, "application/pdf", DetectMIMEType("a.pdf"))
	assert.Equal(t, "text/markdown", DetectMIMEType("README.md"))
	assert.Equal(t, "", DetectMIMEType("Makefile"))
}

func TestTitleFromFilename(t *testing.T) {
	assert.Equal(t, "my report v2", TitleFromFilename("/tmp/my_report-v2.pdf"))
	assert.Equal(t, "", TitleFromFilename(""))
}
