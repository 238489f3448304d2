package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gen, err := NewGenerator(Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)
	return gen
}

func TestNewGenerator_RequiresAPIKey(t *testing.T) {
	_, err := NewGenerator(Config{})

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestGenerate(t *testing.T) {
	var got messagesRequest
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Par"},{"type":"text","text":"is"}],"stop_reason":"end_turn"}`))
	})

	answer, err := gen.Generate(context.Background(), "capital?",
		[]domain.Turn{{Role: domain.RoleUser, Text: "hi"}, {Role: domain.RoleAssistant, Text: "hello"}},
		driven.GenerateOptions{SystemPrompt: "be brief", Temperature: 0})

	require.NoError(t, err)
	assert.Equal(t, "Paris", answer)
	assert.Equal(t, "be brief", got.System)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.Zero(t, *got.Temperature)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "capital?", got.Messages[2].Content)
}

func TestGenerate_Unauthorized(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"authentication_error","message":"bad key"}}`))
	})

	_, err := gen.Generate(context.Background(), "q", nil, driven.GenerateOptions{})

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestGenerate_EmptyContent(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[],"stop_reason":"max_tokens"}`))
	})

	_, err := gen.Generate(context.Background(), "q", nil, driven.GenerateOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
}

func TestPing(t *testing.T) {
	gen := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	assert.NoError(t, gen.Ping(context.Background()))
	assert.Equal(t, DefaultModel, gen.ModelName())
}
