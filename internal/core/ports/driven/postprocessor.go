package driven

// Chunker splits document text into overlapping segments for embedding.
type Chunker interface {
	// Split returns the chunk texts in document order.
	Split(text string) ([]string, error)

	// Size returns the maximum chunk size in characters.
	Size() int

	// Overlap returns the characters shared by consecutive chunks.
	Overlap() int
}

// PostProcessor is one cleanup pass over generated text.
// PostProcessors are chained in a fixed order by a pipeline.
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process returns the cleaned text. It must be deterministic.
	Process(text string) string
}

// PostProcessorPipeline chains PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the text through all processors in order.
	Process(text string) string

	// Names returns the processor names in execution order.
	Names() []string
}
