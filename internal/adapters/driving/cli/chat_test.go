package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

func TestChat_SingleQuestion_CreatesSession(t *testing.T) {
	ts := setupTestServices(t)
	ts.chat.sources = []driving.Source{{DocumentID: "0123456789abcdef", ChunkIndex: 2, Excerpt: "30 days\nfrom purchase", Score: 0.87}}

	out, err := executeCommand(t, "", "chat", "What is the refund policy?")

	require.NoError(t, err)
	assert.Equal(t, 1, ts.sessions.created)
	assert.Contains(t, out, "Session: session-1")
	assert.Contains(t, out, "Refunds are accepted within 30 days.")
	assert.Contains(t, out, "[01234567 #2 0.87] 30 days from purchase")

	require.Len(t, ts.chat.requests, 1)
	assert.Equal(t, "session-1", ts.chat.requests[0].SessionID)
	assert.Equal(t, "What is the refund policy?", ts.chat.requests[0].Question)
}

func TestChat_ExistingSessionAndDocs(t *testing.T) {
	ts := setupTestServices(t)

	out, err := executeCommand(t, "", "chat", "hello", "--session", "abc", "--doc", "d1,d2", "--sources=false")

	require.NoError(t, err)
	assert.Equal(t, 0, ts.sessions.created)
	assert.NotContains(t, out, "Session:")
	require.Len(t, ts.chat.requests, 1)
	assert.Equal(t, "abc", ts.chat.requests[0].SessionID)
	assert.Equal(t, []string{"d1", "d2"}, ts.chat.requests[0].DocumentIDs)
}

func TestChat_Stream(t *testing.T) {
	setupTestServices(t)

	out, err := executeCommand(t, "", "chat", "refunds?", "--stream", "-s", "abc")

	require.NoError(t, err)
	assert.Contains(t, out, "Refunds are accepted within 30 days.\n")
}

func TestChat_ReadsQuestionsFromStdin(t *testing.T) {
	ts := setupTestServices(t)

	_, err := executeCommand(t, "first question\n\nsecond question", "chat", "-s", "abc")

	require.NoError(t, err)
	require.Len(t, ts.chat.requests, 2)
	assert.Equal(t, "first question", ts.chat.requests[0].Question)
	assert.Equal(t, "second question", ts.chat.requests[1].Question)
}

func TestChat_ErrorStopsNonInteractiveLoop(t *testing.T) {
	ts := setupTestServices(t)
	ts.chat.err = domain.ErrProviderUnavailable

	_, err := executeCommand(t, "one\ntwo\n", "chat", "-s", "abc")

	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Len(t, ts.chat.requests, 1)
	assert.Equal(t, ExitConfig, ExitCode(err))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "01234567", shortID("0123456789"))
}
