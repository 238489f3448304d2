package status

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
)

func TestNewBar(t *testing.T) {
	bar := NewBar(styles.DefaultStyles(), keymap.DefaultKeyMap())

	require.NotNil(t, bar)
	assert.Equal(t, StateReady, bar.State())
	assert.Equal(t, "", bar.Message())
}

func TestNewBar_NilStyles(t *testing.T) {
	bar := NewBar(nil, nil)

	require.NotNil(t, bar)
	assert.NotNil(t, bar.styles)
	assert.NotNil(t, bar.keymap)
}

func TestStatusBar_InitAndUpdate(t *testing.T) {
	bar := NewBar(nil, nil)

	assert.Nil(t, bar.Init())

	updated, cmd := bar.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, bar, updated)
	assert.Nil(t, cmd)
}

func TestStatusBar_ViewByState(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(b *Bar)
		want    string
		notWant string
	}{
		{"ready", func(*Bar) {}, "Ready", ""},
		{"thinking", func(b *Bar) { b.SetState(StateThinking) }, "Thinking...", ""},
		{"error with message", func(b *Bar) {
			b.SetState(StateError)
			b.SetMessage("session expired")
		}, "Error: session expired", ""},
		{"answered with model", func(b *Bar) {
			b.SetState(StateAnswered)
			b.SetModel("gpt-4o-mini")
		}, "Answered by gpt-4o-mini", ""},
		{"session shown short", func(b *Bar) {
			b.SetSession("0123456789abcdef")
		}, "session 01234567", "89abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := NewBar(nil, nil)
			bar.SetWidth(160)
			tt.setup(bar)

			view := bar.View()

			assert.Contains(t, view, tt.want)
			if tt.notWant != "" {
				assert.NotContains(t, view, tt.notWant)
			}
		})
	}
}

func TestStatusBar_BindingsFollowFocus(t *testing.T) {
	km := keymap.DefaultKeyMap()
	bar := NewBar(nil, km)

	assert.Equal(t, km.ShortHelp(), bar.Bindings())

	bar.SetState(StateSources)
	assert.Equal(t, km.SourcesHelp(), bar.Bindings())
}

func TestStatusBar_ClearKeepsSession(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetSession("s1")
	bar.SetState(StateError)
	bar.SetMessage("boom")
	bar.SetModel("m")

	bar.Clear()

	assert.Equal(t, StateReady, bar.State())
	assert.Equal(t, "", bar.Message())
	assert.Contains(t, bar.View(), "session s1")
}

func TestStatusBar_Width(t *testing.T) {
	bar := NewBar(nil, nil)

	bar.SetWidth(120)

	assert.Equal(t, 120, bar.Width())
}
