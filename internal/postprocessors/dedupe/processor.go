// Package dedupe removes sentences a model repeated in its answer.
package dedupe

import (
	"strings"

	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Name is the registry name of this pass.
const Name = "dedupe"

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor keeps the first occurrence of every sentence.
// Sentences are compared with whitespace collapsed.
type Processor struct{}

// New creates a deduplicating processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Process splits text into paragraphs on line breaks and paragraphs into
// sentences on ". ", drops repeated sentences and rejoins the remaining
// paragraphs with a blank line.
func (p *Processor) Process(text string) string {
	seen := make(map[string]struct{})
	var paragraphs []string

	for _, para := range strings.Split(text, "\n") {
		parts := strings.Split(para, ". ")
		kept := make([]string, 0, len(parts))
		for i, part := range parts {
			sentence := strings.TrimSpace(part)
			if i < len(parts)-1 {
				sentence += "."
			}
			if sentence == "" || sentence == "." {
				continue
			}
			key := strings.Join(strings.Fields(sentence), " ")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			kept = append(kept, sentence)
		}
		if len(kept) > 0 {
			paragraphs = append(paragraphs, strings.Join(kept, " "))
		}
	}

	return strings.Join(paragraphs, "\n\n")
}
