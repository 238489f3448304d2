// Package newlines normalises line breaks in generated text.
package newlines

import (
	"strings"

	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Name is the registry name of this pass.
const Name = "newlines"

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor converts escaped newlines, collapses blank lines and trims
// trailing newlines.
type Processor struct{}

// New creates a newline processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Process returns text with literal "\n" escapes turned into line breaks and
// every run of line breaks reduced to one.
func (p *Processor) Process(text string) string {
	text = strings.ReplaceAll(text, `\n`, "\n")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for strings.Contains(text, "\n\n") {
		text = strings.ReplaceAll(text, "\n\n", "\n")
	}
	return strings.TrimRight(text, "\n")
}
