package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

func newTestServer(t *testing.T, m *mockPorts) *Server {
	t.Helper()
	server, err := NewServer(m.ports())
	require.NoError(t, err)
	return server
}

func TestServer_handleUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes every content form", func(t *testing.T) {
		m := newMockPorts()
		m.docs.result = &driving.UploadResult{
			DocumentIDs: []string{"a", "b", "c"},
			TotalPages:  5,
		}
		server := newTestServer(t, m)

		path := filepath.Join(t.TempDir(), "notes.md")
		require.NoError(t, os.WriteFile(path, []byte("# Notes"), 0o600))

		input := UploadInput{
			SessionID: "s1",
			Files: []FileInput{
				{Path: path},
				{Name: "a.txt", Content: "hello"},
				{Name: "b.txt", ContentBase64: base64.StdEncoding.EncodeToString([]byte("bytes"))},
			},
		}
		_, output, err := server.handleUpload(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, output.DocumentIDs)
		assert.Equal(t, 5, output.TotalPages)

		req := m.docs.lastReq
		assert.Equal(t, "s1", req.SessionID)
		require.Len(t, req.Files, 3)
		assert.Equal(t, "notes.md", req.Files[0].Name)
		assert.Equal(t, "# Notes", string(req.Files[0].Data))
		assert.Equal(t, "hello", string(req.Files[1].Data))
		assert.Equal(t, "bytes", string(req.Files[2].Data))
	})

	t.Run("reports partial failures", func(t *testing.T) {
		m := newMockPorts()
		m.docs.result = &driving.UploadResult{
			DocumentIDs: []string{"a"},
			TotalPages:  1,
			Failures:    []driving.UploadFailure{{Name: "bad.bin", Error: "unsupported type"}},
		}
		server := newTestServer(t, m)

		_, output, err := server.handleUpload(ctx, nil, UploadInput{
			Files: []FileInput{{Name: "a.txt", Content: "x"}, {Name: "bad.bin", Content: "y"}},
		})

		require.NoError(t, err)
		require.Len(t, output.Failures, 1)
		assert.Equal(t, "bad.bin", output.Failures[0].Name)
	})

	t.Run("rejects empty file list", func(t *testing.T) {
		server := newTestServer(t, newMockPorts())
		_, _, err := server.handleUpload(ctx, nil, UploadInput{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects ambiguous content", func(t *testing.T) {
		server := newTestServer(t, newMockPorts())
		_, _, err := server.handleUpload(ctx, nil, UploadInput{
			Files: []FileInput{{Name: "a.txt", Content: "x", ContentBase64: "eA=="}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects inline content without a name", func(t *testing.T) {
		server := newTestServer(t, newMockPorts())
		_, _, err := server.handleUpload(ctx, nil, UploadInput{
			Files: []FileInput{{Content: "x"}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects malformed base64", func(t *testing.T) {
		server := newTestServer(t, newMockPorts())
		_, _, err := server.handleUpload(ctx, nil, UploadInput{
			Files: []FileInput{{Name: "a.bin", ContentBase64: "%%%"}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("propagates service error", func(t *testing.T) {
		m := newMockPorts()
		m.docs.err = domain.ErrUnsupportedType
		server := newTestServer(t, m)

		_, _, err := server.handleUpload(ctx, nil, UploadInput{
			Files: []FileInput{{Name: "a.xyz", Content: "x"}},
		})
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})
}

func TestServer_handleChat(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a session when none given", func(t *testing.T) {
		m := newMockPorts()
		m.chat.response.Sources = []driving.Source{
			{DocumentID: "d1", ChunkIndex: 2, Excerpt: "forty two...", Score: 0.9},
		}
		server := newTestServer(t, m)

		_, output, err := server.handleChat(ctx, nil, ChatInput{Question: "meaning?"})

		require.NoError(t, err)
		assert.Equal(t, 1, m.sess.created)
		assert.Equal(t, "new-session", output.SessionID)
		assert.Equal(t, "42", output.Answer)
		assert.Equal(t, "gpt-4o-mini", output.Model)
		require.Len(t, output.Sources, 1)
		assert.Equal(t, "d1", output.Sources[0].DocumentID)
		assert.Equal(t, 2, output.Sources[0].ChunkIndex)
	})

	t.Run("reuses given session and document filter", func(t *testing.T) {
		m := newMockPorts()
		server := newTestServer(t, m)

		_, output, err := server.handleChat(ctx, nil, ChatInput{
			Question:    "q",
			SessionID:   "existing",
			DocumentIDs: []string{"d1"},
		})

		require.NoError(t, err)
		assert.Equal(t, 0, m.sess.created)
		assert.Equal(t, "existing", output.SessionID)
		assert.Equal(t, []string{"d1"}, m.chat.lastReq.DocumentIDs)
		assert.NotNil(t, output.Sources)
	})

	t.Run("propagates session errors", func(t *testing.T) {
		m := newMockPorts()
		m.chat.err = domain.ErrSessionExpired
		server := newTestServer(t, m)

		_, _, err := server.handleChat(ctx, nil, ChatInput{Question: "q", SessionID: "old"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestServer_handleConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("applies partial update", func(t *testing.T) {
		m := newMockPorts()
		server := newTestServer(t, m)

		temp := 0.7
		modelType := "local"
		_, output, err := server.handleConfigure(ctx, nil, ConfigureInput{
			Temperature: &temp,
			ModelType:   &modelType,
		})

		require.NoError(t, err)
		assert.Equal(t, 0.7, output.Temperature)
		assert.Equal(t, "local", output.ModelType)
		assert.Equal(t, "local", output.EmbeddingType)
		assert.Equal(t, 512, output.MaxTokens)
	})

	t.Run("invalid field leaves config unchanged", func(t *testing.T) {
		m := newMockPorts()
		server := newTestServer(t, m)

		temp := 0.5
		topP := 3.0
		_, _, err := server.handleConfigure(ctx, nil, ConfigureInput{Temperature: &temp, TopP: &topP})

		require.Error(t, err)
		var cfgErr *domain.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, domain.FieldTopP, cfgErr.Field)
		assert.Equal(t, 0.1, m.config.cfg.Temperature)
	})

	t.Run("empty input returns current config", func(t *testing.T) {
		m := newMockPorts()
		server := newTestServer(t, m)

		_, output, err := server.handleConfigure(ctx, nil, ConfigureInput{})

		require.NoError(t, err)
		assert.Nil(t, m.config.lastPatch)
		assert.Equal(t, "hosted", output.ModelType)
	})
}

func TestServer_handleGetConfig(t *testing.T) {
	m := newMockPorts()
	m.config.cfg.ModelPath = "/models/a.gguf"
	server := newTestServer(t, m)

	_, output, err := server.handleGetConfig(context.Background(), nil, EmptyInput{})

	require.NoError(t, err)
	assert.Equal(t, "/models/a.gguf", output.ModelPath)
	assert.Equal(t, 4096, output.ContextWindow)
	assert.Equal(t, -1, output.GPULayers)
}

func TestServer_handleCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("returns new session", func(t *testing.T) {
		server := newTestServer(t, newMockPorts())
		_, output, err := server.handleCreateSession(ctx, nil, EmptyInput{})

		require.NoError(t, err)
		assert.Equal(t, "new-session", output.SessionID)
		assert.Equal(t, "2026-01-02T03:04:05Z", output.CreatedAt)
	})

	t.Run("propagates error", func(t *testing.T) {
		m := newMockPorts()
		m.sess.err = errors.New("disk full")
		server := newTestServer(t, m)

		_, _, err := server.handleCreateSession(ctx, nil, EmptyInput{})
		assert.Error(t, err)
	})
}
