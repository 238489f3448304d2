package chat

import "errors"

// Error definitions for the chat view.
var (
	// ErrNoChatService indicates that no chat service was provided.
	ErrNoChatService = errors.New("chat service is required")

	// ErrNoSession indicates a question was asked before a session existed.
	ErrNoSession = errors.New("no active session")
)
