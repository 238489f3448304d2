package messages

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestViewType_String(t *testing.T) {
	tests := []struct {
		view ViewType
		want string
	}{
		{ViewMenu, "menu"},
		{ViewChat, "chat"},
		{ViewDocuments, "documents"},
		{ViewDocDetails, "doc_details"},
		{ViewHelp, "help"},
		{ViewType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.view.String())
		})
	}
}

func TestViewType_StartsAtMenu(t *testing.T) {
	var v ViewType
	assert.Equal(t, ViewMenu, v)
}

func TestMessages_AreTeaMessages(t *testing.T) {
	msgs := []tea.Msg{
		ViewChanged{View: ViewChat},
		SessionStarted{Err: domain.ErrSessionNotFound},
		AnswerReceived{Question: "q"},
		DocumentsLoaded{},
		DocumentSelected{DocumentID: "doc-1"},
		DocumentLoaded{},
		DocumentDeleted{DocumentID: "doc-1"},
		ErrorOccurred{Err: errors.New("boom")},
		Quit{},
	}

	assert.Len(t, msgs, 9)
}

func TestSessionStarted_ErrorWrapsNotFound(t *testing.T) {
	msg := SessionStarted{Err: domain.ErrSessionNotFound}

	assert.ErrorIs(t, msg.Err, domain.ErrNotFound)
}
