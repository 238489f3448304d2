package normalisers

import (
	"maps"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// NewDocument builds the extracted document shared by all normalisers.
// The caller assigns the ID and creation time.
func NewDocument(raw *domain.RawDocument, title, content, format string, pages int) domain.Document {
	metadata := maps.Clone(raw.Metadata)
	if metadata == nil {
		metadata = make(map[string]any)
	}
	metadata["format"] = format

	if title == "" {
		title = TitleFromFilename(raw.Filename)
	}

	return domain.Document{
		Filename: raw.Filename,
		Title:    title,
		MIMEType: raw.MIMEType,
		Pages:    pages,
		Content:  content,
		Metadata: metadata,
	}
}

// TitleFromFilename turns "my_report-v2.pdf" into "my report v2".
func TitleFromFilename(name string) string {
	filename := filepath.Base(name)
	if filename == "." || filename == string(filepath.Separator) {
		return ""
	}
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// MetadataTitle returns a caller-supplied title, if any.
func MetadataTitle(raw *domain.RawDocument) string {
	if title, ok := raw.Metadata["title"].(string); ok {
		return strings.TrimSpace(title)
	}
	return ""
}
