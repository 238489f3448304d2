package domain

// RawDocument represents the opaque bytes of an uploaded file.
// It is the input to text extraction.
type RawDocument struct {
	// Filename is the original file name; its extension is a MIME hint.
	Filename string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains caller-supplied key-value pairs.
	Metadata map[string]any
}
