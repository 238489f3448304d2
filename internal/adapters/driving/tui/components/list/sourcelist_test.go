package list

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

func testSources() []driving.Source {
	return []driving.Source{
		{DocumentID: "doc-1", ChunkIndex: 0, Excerpt: "The refund window is\n30 days...", Score: 0.91},
		{DocumentID: "doc-2", ChunkIndex: 4, Excerpt: "Shipping takes a week...", Score: 0.72},
		{DocumentID: "doc-1", ChunkIndex: 3, Excerpt: "Exceptions apply...", Score: 0.55},
	}
}

func TestNewSourceList(t *testing.T) {
	l := NewSourceList(nil)

	require.NotNil(t, l)
	assert.Equal(t, 0, l.Count())
	assert.Nil(t, l.SelectedSource())
	assert.Contains(t, l.View(), "No sources")
}

func TestSourceList_SetSourcesResetsSelection(t *testing.T) {
	l := NewSourceList(nil)
	l.SetSources(testSources())
	l.MoveDown()
	require.Equal(t, 1, l.Selected())

	l.SetSources(testSources()[:1])

	assert.Equal(t, 0, l.Selected())
	assert.Equal(t, 1, l.Count())
}

func TestSourceList_Navigation(t *testing.T) {
	l := NewSourceList(nil)
	l.SetSources(testSources())

	l.MoveUp()
	assert.Equal(t, 0, l.Selected())

	l.Update(tea.KeyMsg{Type: tea.KeyDown})
	l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	l.MoveDown()
	assert.Equal(t, 2, l.Selected())

	l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, 1, l.Selected())
	assert.Equal(t, "doc-2", l.SelectedSource().DocumentID)
}

func TestSourceList_ViewUsesTitles(t *testing.T) {
	l := NewSourceList(nil)
	l.SetDimensions(100, 20)
	l.SetSources(testSources())
	l.SetTitles(map[string]string{"doc-1": "Refund Policy"})

	view := l.View()

	assert.Contains(t, view, "Sources (3)")
	assert.Contains(t, view, "Refund Policy #0")
	assert.Contains(t, view, "doc-2 #4")
	assert.Contains(t, view, "The refund window is 30 days...")
	assert.Contains(t, view, "0.91")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "héllo w...", truncate("héllo wörld!", 10))
}
