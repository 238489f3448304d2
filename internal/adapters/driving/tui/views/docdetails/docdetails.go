// Package docdetails provides the document details view component for the TUI.
package docdetails

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/core/domain"
)

// View shows a document's metadata followed by its extracted text.
type View struct {
	styles *styles.Styles

	document     *domain.Document
	lines        []string
	scrollOffset int
	width        int
	height       int
	ready        bool
	err          error
}

// NewView creates a new document details view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles: s,
		width:  80,
		height: 24,
	}
}

// SetDocument sets the document to display.
func (v *View) SetDocument(doc *domain.Document) {
	v.document = doc
	v.scrollOffset = 0
	v.err = nil
	v.rebuild()
}

// SetError sets an error to display.
func (v *View) SetError(err error) {
	v.err = err
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the document details view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DocumentLoaded:
		if msg.Err != nil {
			v.document = nil
			v.lines = nil
			v.err = msg.Err
			return v, nil
		}
		v.SetDocument(msg.Document)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "pgup":
		v.scrollOffset = max(v.scrollOffset-v.visibleLines(), 0)
	case "pgdown":
		v.scrollOffset = min(v.scrollOffset+v.visibleLines(), v.maxScrollOffset())
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewDocuments}
		}
	}

	return v, nil
}

// visibleLines returns the number of lines that can be displayed.
func (v *View) visibleLines() int {
	return max(v.height-6, 1)
}

// maxScrollOffset returns the maximum scroll offset.
func (v *View) maxScrollOffset() int {
	return max(len(v.lines)-v.visibleLines(), 0)
}

// rebuild lays out the document as display lines for the current width.
func (v *View) rebuild() {
	v.lines = nil
	doc := v.document
	if doc == nil {
		return
	}

	v.lines = append(v.lines,
		formatField("ID", doc.ID),
		formatField("Filename", doc.Filename),
		formatField("Title", doc.Title),
		formatField("Type", doc.MIMEType),
		formatField("Pages", fmt.Sprintf("%d", doc.Pages)),
		formatField("Characters", fmt.Sprintf("%d", len([]rune(doc.Content)))))
	if !doc.CreatedAt.IsZero() {
		v.lines = append(v.lines, formatField("Uploaded", doc.CreatedAt.Format("2006-01-02 15:04:05")))
	}

	if len(doc.Metadata) > 0 {
		v.lines = append(v.lines, "", "Metadata:")
		for _, k := range slices.Sorted(maps.Keys(doc.Metadata)) {
			value := fmt.Sprint(doc.Metadata[k])
			if r := []rune(value); len(r) > 50 {
				value = string(r[:47]) + "..."
			}
			v.lines = append(v.lines, fmt.Sprintf("  %s: %s", k, value))
		}
	}

	v.lines = append(v.lines, "", "Content:")
	wrapped := lipgloss.NewStyle().Width(max(v.width-4, 20)).Render(doc.Content)
	v.lines = append(v.lines, strings.Split(wrapped, "\n")...)
}

func formatField(label, value string) string {
	return fmt.Sprintf("%-12s %s", label+":", value)
}

// View renders the document details view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Document Details"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(min(v.width-4, 60), 0)))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	if v.document == nil {
		b.WriteString(v.styles.Muted.Render("No document selected"))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	visible := v.visibleLines()
	end := min(v.scrollOffset+visible, len(v.lines))
	inContent := false
	for i := range v.lines {
		line := v.lines[i]
		if line == "Content:" {
			inContent = true
		}
		if i < v.scrollOffset || i >= end {
			continue
		}
		b.WriteString(v.renderLine(line, inContent))
		b.WriteString("\n")
	}

	if len(v.lines) > visible {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [Line %d-%d of %d]", v.scrollOffset+1, end, len(v.lines))))
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

// renderLine styles a single display line.
func (v *View) renderLine(line string, inContent bool) string {
	switch {
	case line == "Metadata:" || line == "Content:":
		return v.styles.Subtitle.Render(line)
	case inContent:
		return v.styles.Normal.Render(line)
	case strings.HasPrefix(line, "  "):
		if label, value, ok := strings.Cut(line, ":"); ok {
			return v.styles.Muted.Render(label+":") + v.styles.Normal.Render(value)
		}
	default:
		if label, value, ok := strings.Cut(line, ":"); ok {
			return v.styles.Subtitle.Render(label+":") + v.styles.Normal.Render(value)
		}
	}
	return v.styles.Normal.Render(line)
}

// renderHelp renders the help footer.
func (v *View) renderHelp() string {
	return v.styles.Help.Render("[↑/↓] scroll  [pgup/pgdn] page  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.rebuild()
	v.scrollOffset = min(v.scrollOffset, v.maxScrollOffset())
}

// Document returns the displayed document.
func (v *View) Document() *domain.Document {
	return v.document
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
