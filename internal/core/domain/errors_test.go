package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrConfiguration", ErrConfiguration},
		{"ErrProviderUnavailable", ErrProviderUnavailable},
		{"ErrUnsupportedModelFormat", ErrUnsupportedModelFormat},
		{"ErrSessionNotFound", ErrSessionNotFound},
		{"ErrSessionExpired", ErrSessionExpired},
		{"ErrGenerationFailed", ErrGenerationFailed},
		{"ErrIndexCorrupt", ErrIndexCorrupt},
		{"ErrDataLoss", ErrDataLoss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrUnsupportedModelFormat_IsProviderUnavailable(t *testing.T) {
	err := fmt.Errorf("upload model.xyz: %w", ErrUnsupportedModelFormat)

	assert.ErrorIs(t, err, ErrUnsupportedModelFormat)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotErrorIs(t, err, ErrConfiguration)
}

func TestSessionErrors_AreNotFound(t *testing.T) {
	assert.ErrorIs(t, ErrSessionNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrSessionExpired, ErrNotFound)
	assert.False(t, errors.Is(ErrSessionExpired, ErrSessionNotFound))
	assert.Equal(t, "session not found", ErrSessionNotFound.Error())
}

func TestConfigError(t *testing.T) {
	err := NewConfigError(FieldTemperature, "must be between %d and %d", 0, 2)

	assert.Equal(t, "invalid temperature: must be between 0 and 2", err.Error())
	assert.ErrorIs(t, err, ErrConfiguration)

	var cfgErr *ConfigError
	wrapped := fmt.Errorf("update: %w", err)
	require.True(t, errors.As(wrapped, &cfgErr))
	assert.Equal(t, FieldTemperature, cfgErr.Field)
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StageDocsRetrieved, Err: fmt.Errorf("generate: %w", ErrGenerationFailed)}

	assert.Equal(t, "after docs_retrieved: generate: generation failed", err.Error())
	assert.ErrorIs(t, err, ErrGenerationFailed)

	var stageErr *StageError
	require.True(t, errors.As(fmt.Errorf("ask: %w", err), &stageErr))
	assert.Equal(t, StageDocsRetrieved, stageErr.Stage)
}
