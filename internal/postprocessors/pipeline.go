// Package postprocessors cleans up generated answers before they are returned.
package postprocessors

import (
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// maxRounds bounds how often the passes are repeated looking for a fixed point.
const maxRounds = 8

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains multiple PostProcessors and runs them in order.
// The chain is repeated until the text stops changing, so running a
// pipeline over its own output returns it unchanged.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the text through all processors in order.
func (p *Pipeline) Process(text string) string {
	for range maxRounds {
		next := p.once(text)
		if next == text {
			return next
		}
		text = next
	}
	return text
}

func (p *Pipeline) once(text string) string {
	for _, processor := range p.processors {
		text = processor.Process(text)
	}
	return text
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Names returns the processor names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, processor := range p.processors {
		names[i] = processor.Name()
	}
	return names
}
