package cli

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestConfig_ShowText(t *testing.T) {
	ts := setupTestServices(t)
	ts.settings.settings.HostedLLM.APIKey = "sk-1234567890abcdef"

	out, err := executeCommand(t, "", "config")

	require.NoError(t, err)
	assert.Contains(t, out, "Current Configuration")
	assert.Contains(t, out, "Type:           hosted")
	assert.Contains(t, out, "Temperature:    0.1")
	assert.Contains(t, out, "Embedding:      hosted (follows model type)")
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.NotContains(t, out, "sk-1234567890abcdef")
	assert.Contains(t, out, "Chunk size: 1000, overlap: 200")
}

func TestConfig_ShowFormats(t *testing.T) {
	decoders := map[string]func([]byte, any) error{
		"json": json.Unmarshal,
		"yaml": yaml.Unmarshal,
		"toml": toml.Unmarshal,
	}

	for format, decode := range decoders {
		t.Run(format, func(t *testing.T) {
			setupTestServices(t)

			out, err := executeCommand(t, "", "config", "show", "-o", format)
			require.NoError(t, err)

			var view configView
			require.NoError(t, decode([]byte(out), &view))
			assert.Equal(t, "hosted", view.Model.ModelType)
			assert.Equal(t, 512, view.Model.MaxTokens)
			assert.True(t, view.Model.EmbeddingAuto)
			assert.Equal(t, domain.IndexBackendSQLite, view.Storage.Index)
			assert.Equal(t, "2m0s", view.Runtime.StartupTimeout)
		})
	}
}

func TestConfig_ShowUnknownFormat(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "", "config", "show", "-o", "xml")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfig_SetModelValues(t *testing.T) {
	ts := setupTestServices(t)

	out, err := executeCommand(t, "", "config", "set", "temperature=0.3", "n_ctx=8192", "embedding_type=local")

	require.NoError(t, err)
	assert.Contains(t, out, "Updated 3 value(s)")
	assert.InDelta(t, 0.3, ts.modelConfig.cfg.Temperature, 1e-9)
	assert.Equal(t, 8192, ts.modelConfig.cfg.ContextWindow)
	assert.Equal(t, domain.EmbeddingLocal, ts.modelConfig.cfg.EmbeddingType)
	assert.True(t, ts.modelConfig.cfg.EmbeddingOverride)
	assert.Equal(t, 0, ts.settings.saved)
}

func TestConfig_SetSettings(t *testing.T) {
	ts := setupTestServices(t)

	_, err := executeCommand(t, "", "config", "set",
		"llm.provider=Anthropic", "retrieval.top_k=6", "storage.sessions=bolt", "runtime.startup_timeout=30s")

	require.NoError(t, err)
	assert.Equal(t, 1, ts.settings.saved)
	s := ts.settings.settings
	assert.Equal(t, domain.AIProviderAnthropic, s.HostedLLM.Provider)
	assert.Equal(t, 6, s.Retrieval.TopK)
	assert.Equal(t, domain.SessionBackendBolt, s.Storage.SessionBackend)
	assert.Equal(t, 30*time.Second, s.Runtime.StartupTimeout)
	assert.Equal(t, 0, ts.modelConfig.updates)
}

func TestConfig_SetIsAtomic(t *testing.T) {
	ts := setupTestServices(t)

	_, err := executeCommand(t, "", "config", "set", "retrieval.top_k=8", "temperature=5")

	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, 0, ts.settings.saved)
	assert.Equal(t, 0, ts.modelConfig.updates)
	assert.Equal(t, ExitConfig, ExitCode(err))
}

func TestConfig_SetRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing equals", []string{"temperature"}},
		{"unknown key", []string{"colour=blue"}},
		{"bad number", []string{"max_tokens=lots"}},
		{"bad provider", []string{"llm.provider=skynet"}},
		{"bad backend", []string{"storage.index=postgres"}},
		{"negative chunk size", []string{"chunking.size=0"}},
		{"bad duration", []string{"runtime.startup_timeout=soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServices(t)

			_, err := executeCommand(t, "", append([]string{"config", "set"}, tt.args...)...)

			require.Error(t, err)
			assert.Equal(t, 0, ts.settings.saved)
			assert.Equal(t, 0, ts.modelConfig.updates)
		})
	}
}

func TestConfigureLLMProvider(t *testing.T) {
	ts := setupTestServices(t)
	cmd := &cobra.Command{}
	cmd.SetOut(new(strings.Builder))

	reader := bufio.NewReader(strings.NewReader("2\n\nsk-ant-123456789\n"))
	err := configureLLMProvider(cmd, reader)

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderAnthropic, ts.settings.settings.HostedLLM.Provider)
	assert.Equal(t, domain.DefaultLLMModels()[domain.AIProviderAnthropic], ts.settings.settings.HostedLLM.Model)
	assert.Equal(t, "sk-ant-123456789", ts.settings.settings.HostedLLM.APIKey)
}

func TestConfigureLLMProvider_ValidationFails(t *testing.T) {
	ts := setupTestServices(t)
	ts.settings.validateErr = domain.ErrProviderUnavailable
	cmd := &cobra.Command{}
	out := new(strings.Builder)
	cmd.SetOut(out)

	err := configureLLMProvider(cmd, bufio.NewReader(strings.NewReader("3\nllama3.1\n")))

	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Contains(t, out.String(), "FAILED")
	assert.Equal(t, domain.AIProviderOllama, ts.settings.settings.HostedLLM.Provider)
	assert.Equal(t, "llama3.1", ts.settings.settings.HostedLLM.Model)
}

func TestConfigureEmbeddingProvider_Local(t *testing.T) {
	ts := setupTestServices(t)
	cmd := &cobra.Command{}
	cmd.SetOut(new(strings.Builder))

	err := configureEmbeddingProvider(cmd, bufio.NewReader(strings.NewReader("2\nmxbai-embed-large\nhttp://gpu-box:11434\n")))

	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large", ts.settings.settings.LocalEmbedding.Model)
	assert.Equal(t, "http://gpu-box:11434", ts.settings.settings.LocalEmbedding.BaseURL)
}

func TestConfigureEmbeddingProvider_HostedKeepsKey(t *testing.T) {
	ts := setupTestServices(t)
	ts.settings.settings.HostedEmbedding.APIKey = "sk-existing-key"
	cmd := &cobra.Command{}
	cmd.SetOut(new(strings.Builder))

	err := configureEmbeddingProvider(cmd, bufio.NewReader(strings.NewReader("\n\n\n")))

	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", ts.settings.settings.HostedEmbedding.Model)
	assert.Equal(t, "sk-existing-key", ts.settings.settings.HostedEmbedding.APIKey)
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"abc123", "****"},
		{"12345678", "****"},
		{"sk-1234567890abcdef", "sk-1...cdef"},
		{"", "****"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, maskAPIKey(tt.input), tt.input)
	}
	assert.Empty(t, maskOptional(""))
	assert.Equal(t, "sk-1...cdef", maskOptional("sk-1234567890abcdef"))
}

func TestParseChoice(t *testing.T) {
	assert.Equal(t, 1, parseChoice("", 3, 1))
	assert.Equal(t, 2, parseChoice("2", 3, 1))
	assert.Equal(t, 1, parseChoice("9", 3, 1))
	assert.Equal(t, 1, parseChoice("x", 3, 1))
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "(not set)", orNotSet(""))
	assert.Equal(t, "v", orNotSet("v"))
	assert.Equal(t, "configured", configuredStatus(true))
	assert.Equal(t, "not configured", configuredStatus(false))
}
