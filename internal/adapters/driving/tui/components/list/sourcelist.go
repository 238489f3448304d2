// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// SourceList displays the passages an answer was based on.
type SourceList struct {
	sources  []driving.Source
	titles   map[string]string
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewSourceList creates a new source list component.
func NewSourceList(s *styles.Styles) *SourceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SourceList{
		styles: s,
		titles: map[string]string{},
		width:  80,
		height: 10,
	}
}

// Init initialises the source list.
func (r *SourceList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (r *SourceList) Update(msg tea.Msg) (*SourceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		}
	}
	return r, nil
}

// View renders the source list.
func (r *SourceList) View() string {
	if len(r.sources) == 0 {
		return r.styles.Muted.Render("No sources")
	}

	lines := make([]string, 0, len(r.sources)*2+2)
	lines = append(lines, r.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(r.sources))), "")

	// Each source takes two lines.
	visibleCount := max((r.height-2)/2, 1)

	start := 0
	if r.selected >= visibleCount {
		start = r.selected - visibleCount + 1
	}
	end := min(start+visibleCount, len(r.sources))

	for i := start; i < end; i++ {
		lines = append(lines, r.renderSource(i, &r.sources[i]))
	}

	return strings.Join(lines, "\n")
}

// renderSource formats one source with its excerpt.
func (r *SourceList) renderSource(index int, src *driving.Source) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	title := r.titles[src.DocumentID]
	if title == "" {
		title = src.DocumentID
	}
	title = fmt.Sprintf("%s #%d", title, src.ChunkIndex)
	maxTitleLen := max(r.width-12, 10)
	title = truncate(title, maxTitleLen)

	score := fmt.Sprintf("%.2f", src.Score)

	var titleLine string
	if index == r.selected {
		titleLine = r.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxTitleLen, title, score))
	} else {
		titleLine = r.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxTitleLen, title)) +
			r.styles.Muted.Render(score)
	}

	excerpt := strings.Join(strings.Fields(src.Excerpt), " ")
	excerptLine := r.styles.Citation.Render(truncate(excerpt, max(r.width-6, 20)))

	return titleLine + "\n" + excerptLine
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// SetSources replaces the list and resets the selection.
func (r *SourceList) SetSources(sources []driving.Source) {
	r.sources = sources
	r.selected = 0
}

// SetTitles maps document IDs to display titles.
func (r *SourceList) SetTitles(titles map[string]string) {
	if titles == nil {
		titles = map[string]string{}
	}
	r.titles = titles
}

// Sources returns the current sources.
func (r *SourceList) Sources() []driving.Source {
	return r.sources
}

// Selected returns the index of the selected source.
func (r *SourceList) Selected() int {
	return r.selected
}

// SelectedSource returns the currently selected source, or nil if none.
func (r *SourceList) SelectedSource() *driving.Source {
	if r.selected < 0 || r.selected >= len(r.sources) {
		return nil
	}
	return &r.sources[r.selected]
}

// MoveUp moves selection up.
func (r *SourceList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *SourceList) MoveDown() {
	if r.selected < len(r.sources)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *SourceList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of sources.
func (r *SourceList) Count() int {
	return len(r.sources)
}
