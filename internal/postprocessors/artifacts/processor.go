// Package artifacts strips trailing model metadata from generated text.
package artifacts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Name is the registry name of this pass.
const Name = "artifacts"

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultPatterns match known trailing metadata. Each is anchored to the end
// of a line.
var DefaultPatterns = []string{
	`\bend[ \t]*#[ \t]*of[ \t]*lines[ \t]*$`,
	`#[ \t]*of[ \t]*(?:unique[ \t]*)?(?:words|characters):[ \t]*\d+[ \t]*\(~.*?\)[ \t]*$`,
	`\\(?:begin|end)\{code\}[ \t]*$`,
	`\\section\*.*$`,
	`\{[ \t.]*\}[ \t]*$`,
	`[. \t]{50,}$`,
	`\bend[ \t]*$`,
}

// Processor removes metadata patterns line by line until none match.
type Processor struct {
	patterns []*regexp.Regexp
}

// Option configures the artifacts processor.
type Option func(*Processor) error

// WithPatterns appends extra end-anchored patterns. A pattern without a
// trailing "$" is anchored automatically.
func WithPatterns(patterns ...string) Option {
	return func(p *Processor) error {
		for _, pattern := range patterns {
			if !strings.HasSuffix(pattern, "$") {
				pattern += "$"
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("compile artifact pattern %q: %w", pattern, err)
			}
			p.patterns = append(p.patterns, re)
		}
		return nil
	}
}

// New creates an artifacts processor with the default patterns.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{}
	for _, pattern := range DefaultPatterns {
		p.patterns = append(p.patterns, regexp.MustCompile(pattern))
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return Name
}

// Process strips matching suffixes from every line, drops surplus blank lines
// and trims trailing whitespace.
func (p *Processor) Process(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false

	for _, line := range lines {
		line = p.stripLine(line)
		if line == "" {
			if len(out) > 0 && !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}

	return strings.TrimRightFunc(strings.Join(out, "\n"), isSpace)
}

// stripLine removes patterns until the line stops changing, so a marker
// uncovered by an earlier removal is removed too.
func (p *Processor) stripLine(line string) string {
	line = strings.TrimRightFunc(line, isSpace)
	for {
		before := line
		for _, re := range p.patterns {
			line = re.ReplaceAllString(line, "")
		}
		line = strings.TrimRightFunc(line, isSpace)
		if line == before {
			return line
		}
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
