package docdetails

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docchat/internal/core/domain"
)

func testDocument() *domain.Document {
	return &domain.Document{
		ID:        "doc-1",
		Filename:  "handbook.pdf",
		Title:     "Employee Handbook",
		MIMEType:  "application/pdf",
		Pages:     3,
		Content:   "Leave policy.\nEmployees accrue two days per month.",
		Metadata:  map[string]any{"author": "HR", "producer": "pdfTeX"},
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewView(t *testing.T) {
	v := NewView(nil)

	require.NotNil(t, v)
	assert.NotNil(t, v.styles)
	assert.Nil(t, v.Init())
	assert.Nil(t, v.Document())
	assert.Contains(t, v.View(), "No document selected")
}

func TestView_SetDocument(t *testing.T) {
	v := NewView(nil)
	v.SetDimensions(100, 40)

	v.SetDocument(testDocument())
	out := v.View()

	assert.Contains(t, out, "Employee Handbook")
	assert.Contains(t, out, "handbook.pdf")
	assert.Contains(t, out, "application/pdf")
	assert.Contains(t, out, "2026-03-01 09:30:00")
	assert.Contains(t, out, "author")
	assert.Contains(t, out, "Employees accrue two days per month.")
}

func TestView_DocumentLoaded(t *testing.T) {
	v := NewView(nil)

	v.Update(messages.DocumentLoaded{Document: testDocument()})
	require.NotNil(t, v.Document())
	assert.Equal(t, "doc-1", v.Document().ID)

	v.Update(messages.DocumentLoaded{Err: domain.ErrNotFound})
	assert.Nil(t, v.Document())
	assert.ErrorIs(t, v.Err(), domain.ErrNotFound)
	assert.Contains(t, v.View(), "Error:")
}

func TestView_Scroll(t *testing.T) {
	doc := testDocument()
	doc.Content = strings.Repeat("line\n", 50)
	v := NewView(nil)
	v.SetDimensions(80, 16)
	v.SetDocument(doc)

	v.Update(keyRunes("k"))
	assert.Equal(t, 0, v.scrollOffset)

	v.Update(keyRunes("j"))
	v.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, v.scrollOffset)

	v.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	assert.Equal(t, 12, v.scrollOffset)

	for range 100 {
		v.Update(keyRunes("j"))
	}
	assert.Equal(t, v.maxScrollOffset(), v.scrollOffset)
	assert.Contains(t, v.View(), "[Line")

	v.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	assert.Equal(t, v.maxScrollOffset()-10, v.scrollOffset)
}

func TestView_Back(t *testing.T) {
	v := NewView(nil)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	changed, ok := cmd().(messages.ViewChanged)
	require.True(t, ok)
	assert.Equal(t, messages.ViewDocuments, changed.View)
}

func TestView_ErrorOccurred(t *testing.T) {
	v := NewView(nil)

	v.Update(messages.ErrorOccurred{Err: domain.ErrIndexCorrupt})

	assert.ErrorIs(t, v.Err(), domain.ErrIndexCorrupt)
}
