package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// testVocabulary gives fakeEmbedder one dimension per word.
var testVocabulary = []string{
	"paris", "france", "capital", "berlin", "germany", "river", "seine", "wine", "beer", "museum",
}

// fakeEmbedder maps text to word counts over testVocabulary, so texts
// sharing words score higher. A text with no known words gets a small
// constant so its vector is never zero.
type fakeEmbedder struct {
	mu      sync.Mutex
	model   string
	metric  domain.SimilarityMetric
	dims    int
	err     error
	// okBatches is how many EmbedBatch calls succeed before err applies.
	okBatches int
	calls     int
	batches   [][]string
	closed  bool
}

var _ driven.EmbeddingService = (*fakeEmbedder)(nil)

func newFakeEmbedder(model string) *fakeEmbedder {
	return &fakeEmbedder{model: model, metric: domain.MetricCosine, dims: len(testVocabulary) + 1}
}

func (f *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, f.dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,?!:;\"'")
		for i, word := range testVocabulary {
			if i < f.dims-1 && w == word {
				v[i]++
			}
		}
	}
	v[f.dims-1] = 0.1
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.err != nil && f.calls > f.okBatches {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                 { return f.dims }
func (f *fakeEmbedder) ModelName() string               { return f.model }
func (f *fakeEmbedder) Metric() domain.SimilarityMetric { return f.metric }
func (f *fakeEmbedder) Ping(context.Context) error      { return nil }

func (f *fakeEmbedder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEmbedder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEmbedder) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeEmbedder) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// fakeEmbeddingFactory hands out a new fakeEmbedder per call, named after
// the embedding type, and remembers every instance it built.
type fakeEmbeddingFactory struct {
	mu    sync.Mutex
	built []*fakeEmbedder
	fail  map[domain.EmbeddingType]error

	// embedErr is given to every embedder built, after embedOK good batches.
	embedErr error
	embedOK  int
}

func newFakeEmbeddingFactory() *fakeEmbeddingFactory {
	return &fakeEmbeddingFactory{fail: map[domain.EmbeddingType]error{}}
}

func (f *fakeEmbeddingFactory) build(t domain.EmbeddingType) (driven.EmbeddingService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[t]; err != nil {
		return nil, err
	}
	e := newFakeEmbedder(string(t) + "-embed")
	e.err, e.okBatches = f.embedErr, f.embedOK
	f.built = append(f.built, e)
	return e, nil
}

func (f *fakeEmbeddingFactory) last() *fakeEmbedder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.built) == 0 {
		return nil
	}
	return f.built[len(f.built)-1]
}

func (f *fakeEmbeddingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

// staticConfig is a settable ModelConfigSource.
type staticConfig struct {
	mu  sync.Mutex
	cfg domain.ModelConfig
}

func newStaticConfig() *staticConfig {
	return &staticConfig{cfg: domain.DefaultModelConfig()}
}

func (c *staticConfig) Get() domain.ModelConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

func (c *staticConfig) setEmbedding(t domain.EmbeddingType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.EmbeddingType = t
	c.cfg.EmbeddingOverride = true
}

// fakeChunker splits on blank lines.
type fakeChunker struct{}

func (fakeChunker) Split(text string) ([]string, error) {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (fakeChunker) Size() int    { return 100 }
func (fakeChunker) Overlap() int { return 0 }

// fakeGenerator records its inputs and returns a fixed answer or error.
type fakeGenerator struct {
	mu       sync.Mutex
	model    string
	answer   string
	deltas   []string
	err      error
	prompts  []string
	history  [][]domain.Turn
	opts     []driven.GenerateOptions
	closed   bool
	streamed bool
}

var _ driven.StreamingGenerator = (*fakeGenerator)(nil)

func newFakeGenerator(answer string) *fakeGenerator {
	return &fakeGenerator{model: "fake-llm", answer: answer}
}

func (g *fakeGenerator) Generate(
	_ context.Context, prompt string, history []domain.Turn, opts driven.GenerateOptions,
) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.history = append(g.history, append([]domain.Turn(nil), history...))
	g.opts = append(g.opts, opts)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *fakeGenerator) GenerateStream(
	ctx context.Context, prompt string, history []domain.Turn, opts driven.GenerateOptions,
	onDelta func(string) error,
) (string, error) {
	text, err := g.Generate(ctx, prompt, history, opts)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.streamed = true
	deltas := g.deltas
	g.mu.Unlock()
	if len(deltas) == 0 {
		deltas = []string{text}
	}
	for _, d := range deltas {
		if err := onDelta(d); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (g *fakeGenerator) ModelName() string { return g.model }

func (g *fakeGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

var errFake = errors.New("fake failure")
