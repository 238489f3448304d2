package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui"
)

func TestTUICmd(t *testing.T) {
	assert.Equal(t, "tui", tuiCmd.Use)
	assert.Equal(t, "Launch the interactive terminal UI", tuiCmd.Short)
	assert.NotNil(t, tuiCmd.RunE)
}

func TestTUIPorts_FromServices(t *testing.T) {
	ts := setupTestServices(t)

	ports := tuiPorts()

	require.NotNil(t, ports)
	assert.Equal(t, ts.chat, ports.Chat)
	assert.Equal(t, ts.sessions, ports.Session)
	assert.Equal(t, ts.documents, ports.Document)
	assert.NoError(t, ports.Validate())
}

func TestTUIPorts_Unconfigured(t *testing.T) {
	original := tuiConfig
	defer func() { tuiConfig = original }()
	SetTUIConfig(nil)

	ports := tuiPorts()

	assert.ErrorIs(t, ports.Validate(), tui.ErrMissingChatService)
}

func TestRunTUI_InvalidPorts(t *testing.T) {
	original := tuiConfig
	defer func() { tuiConfig = original }()
	SetTUIConfig(&TUIConfig{})

	err := runTUI(tuiCmd, nil)

	assert.ErrorIs(t, err, tui.ErrMissingChatService)
}
