package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/docchat/internal/adapters/driving/mcp"
)

func TestMCPCmd(t *testing.T) {
	assert.Equal(t, "mcp", mcpCmd.Use)
	assert.NotNil(t, mcpCmd.Flags().Lookup("http"))
}

func TestMCP_RequiresDocumentService(t *testing.T) {
	setupTestServices(t)
	documentService = nil

	_, err := executeCommand(t, "", "mcp")

	assert.ErrorIs(t, err, mcp.ErrMissingDocumentService)
}
