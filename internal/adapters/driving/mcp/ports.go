package mcp

import (
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	Chat        driving.ChatService
	Document    driving.DocumentService
	Session     driving.SessionService
	ModelConfig driving.ModelConfigService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	switch {
	case p.Chat == nil:
		return ErrMissingChatService
	case p.Document == nil:
		return ErrMissingDocumentService
	case p.Session == nil:
		return ErrMissingSessionService
	case p.ModelConfig == nil:
		return ErrMissingModelConfigService
	}
	return nil
}
