// Package chunker splits document text into overlapping chunks for embedding.
package chunker

import (
	"regexp"
	"slices"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Configuration field names reported in errors.
const (
	FieldChunkSize = "chunk_size"
	FieldOverlap   = "overlap"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// Processor splits document content into chunks of at most size runes.
// Every chunk after the first begins with the last overlap runes of the
// chunk before it.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a chunker. Returns a *domain.ConfigError if the size is not
// positive or the overlap is negative or not smaller than the size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := validate(p.chunkSize, p.overlap); err != nil {
		return nil, err
	}
	return p, nil
}

// Split is a convenience wrapper around New and Processor.Split.
func Split(text string, size, overlap int) ([]string, error) {
	p, err := New(WithChunkSize(size), WithOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return p.Split(text)
}

func validate(size, overlap int) error {
	if size <= 0 {
		return domain.NewConfigError(FieldChunkSize, "must be greater than 0, got %d", size)
	}
	if overlap < 0 {
		return domain.NewConfigError(FieldOverlap, "must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return domain.NewConfigError(FieldOverlap, "must be smaller than chunk_size (%d), got %d", size, overlap)
	}
	return nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Size returns the maximum chunk size in characters.
func (p *Processor) Size() int {
	return p.chunkSize
}

// Overlap returns the characters shared by consecutive chunks.
func (p *Processor) Overlap() int {
	return p.overlap
}

// piece is a unit of packing together with the separator that precedes it
// when it is appended to a non-empty chunk.
type piece struct {
	text string
	sep  string
}

// Split returns the chunk texts in document order.
// Paragraphs are packed greedily; a paragraph that does not fit is split on
// line breaks and then hard-split by runes. Whitespace-only pieces are skipped.
func (p *Processor) Split(text string) ([]string, error) {
	if err := validate(p.chunkSize, p.overlap); err != nil {
		return nil, err
	}

	// Room left for new text once the overlap prefix is in place.
	budget := p.chunkSize - p.overlap

	var bodies []body
	var cur *body
	limit := budget
	flush := func() {
		if cur != nil {
			bodies = append(bodies, *cur)
			cur = nil
		}
	}

	queue := p.pieces(text, budget)
	for i := 0; i < len(queue); i++ {
		pc := queue[i]
		r := []rune(pc.text)
		if cur != nil && len(cur.text)+runeLen(pc.sep)+len(r) > limit {
			flush()
		}
		if cur != nil {
			cur.text = append(cur.text, []rune(pc.sep)...)
			cur.text = append(cur.text, r...)
			continue
		}

		// A body after the first is joined to the overlap by its leading
		// separator, which counts against the budget.
		cur = &body{}
		limit = budget
		if len(bodies) > 0 && p.overlap > 0 {
			if sl := runeLen(pc.sep); sl < budget {
				cur.sep = pc.sep
				limit -= sl
			}
		}
		if len(r) > limit {
			queue = slices.Insert(queue, i+1, piece{text: string(r[limit:])})
			r = r[:limit]
		}
		cur.text = append(cur.text, r...)
	}
	flush()

	if len(bodies) == 0 {
		return nil, nil
	}

	chunks := make([]string, len(bodies))
	chunks[0] = string(bodies[0].text)
	for i := 1; i < len(bodies); i++ {
		chunks[i] = tail(chunks[i-1], p.overlap) + bodies[i].sep + string(bodies[i].text)
	}
	return chunks, nil
}

// body is the new text of one chunk and the separator that joins it to
// the overlap taken from the previous chunk.
type body struct {
	sep  string
	text []rune
}

// pieces breaks text into paragraphs, lines and finally rune windows so that
// no piece is longer than budget.
func (p *Processor) pieces(text string, budget int) []piece {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []piece
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(para) <= budget {
			out = append(out, piece{text: para, sep: "\n\n"})
			continue
		}

		sep := "\n\n"
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			// Windows of one line continue each other without a separator.
			for j, w := range hardSplit(line, budget) {
				if strings.TrimSpace(w) == "" {
					continue
				}
				if j > 0 {
					out = append(out, piece{text: w})
					continue
				}
				out = append(out, piece{text: w, sep: sep})
			}
			sep = "\n"
		}
	}
	return out
}

// hardSplit cuts s into consecutive windows of at most n runes.
func hardSplit(s string, n int) []string {
	r := []rune(s)
	if len(r) <= n {
		return []string{s}
	}
	out := make([]string, 0, len(r)/n+1)
	for start := 0; start < len(r); start += n {
		end := min(start+n, len(r))
		out = append(out, string(r[start:end]))
	}
	return out
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	if n == 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func runeLen(s string) int {
	return len([]rune(s))
}

// Process splits the document content into chunks owned by the document.
func (p *Processor) Process(doc *domain.Document) ([]domain.Chunk, error) {
	texts, err := p.Split(doc.Content)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			DocumentID: doc.ID,
			Index:      i,
			Content:    text,
		})
	}
	return chunks, nil
}
