// Package mcp exposes docchat over the Model Context Protocol so AI
// assistants can upload documents, ask questions and tune the model.
package mcp

import "errors"

// Errors returned when required ports are missing.
var (
	ErrMissingChatService        = errors.New("mcp: chat service is required")
	ErrMissingDocumentService    = errors.New("mcp: document service is required")
	ErrMissingSessionService     = errors.New("mcp: session service is required")
	ErrMissingModelConfigService = errors.New("mcp: model config service is required")
)
