// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewChat is the conversation view.
	ViewChat
	// ViewDocuments lists uploaded documents.
	ViewDocuments
	// ViewDocDetails shows one document's metadata and text.
	ViewDocDetails
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewChat:
		return "chat"
	case ViewDocuments:
		return "documents"
	case ViewDocDetails:
		return "doc_details"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// SessionStarted carries a newly created session.
type SessionStarted struct {
	Session *domain.Session
	Err     error
}

// AnswerReceived carries the response to a question.
type AnswerReceived struct {
	Question string
	Response *driving.ChatResponse
	Err      error

	// Titles maps source document IDs to display titles. Best effort.
	Titles map[string]string
}

// DocumentsLoaded carries the list of uploaded documents.
type DocumentsLoaded struct {
	Documents []driving.DocumentDetails
	Err       error
}

// DocumentSelected signals a document was chosen for the details view.
type DocumentSelected struct {
	DocumentID string
}

// DocumentLoaded carries a full document, including its text.
type DocumentLoaded struct {
	Document *domain.Document
	Err      error
}

// DocumentDeleted signals a document and its index were removed.
type DocumentDeleted struct {
	DocumentID string
	Err        error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
