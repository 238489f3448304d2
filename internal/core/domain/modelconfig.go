package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ModelType selects between a hosted generation API and a local model file.
type ModelType string

// Available model types.
const (
	ModelTypeHosted ModelType = "hosted"
	ModelTypeLocal  ModelType = "local"
)

// IsValid returns true if the model type is recognised.
func (t ModelType) IsValid() bool {
	return t == ModelTypeHosted || t == ModelTypeLocal
}

// String returns the string representation.
func (t ModelType) String() string {
	return string(t)
}

// EmbeddingType selects between the hosted and locally computed embedding provider.
type EmbeddingType string

// Available embedding types.
const (
	EmbeddingHosted EmbeddingType = "hosted"
	EmbeddingLocal  EmbeddingType = "local"

	// EmbeddingAuto is only accepted in patches. It clears an explicit
	// override so the embedding type follows the model type again.
	EmbeddingAuto EmbeddingType = "auto"
)

// IsValid returns true if the embedding type names a provider.
func (t EmbeddingType) IsValid() bool {
	return t == EmbeddingHosted || t == EmbeddingLocal
}

// String returns the string representation.
func (t EmbeddingType) String() string {
	return string(t)
}

// ParseEmbeddingType normalises an identifier, trimming incidental whitespace.
func ParseEmbeddingType(s string) EmbeddingType {
	return EmbeddingType(strings.ToLower(strings.TrimSpace(s)))
}

// ParseModelType normalises a model type the same way as ParseEmbeddingType.
func ParseModelType(s string) ModelType {
	return ModelType(strings.ToLower(strings.TrimSpace(s)))
}

// DefaultEmbeddingFor returns the embedding type that tracks a model type.
func DefaultEmbeddingFor(t ModelType) EmbeddingType {
	if t == ModelTypeLocal {
		return EmbeddingLocal
	}
	return EmbeddingHosted
}

// Configuration field names, used in patches, config keys and errors.
const (
	FieldModelType     = "model_type"
	FieldModelPath     = "model_path"
	FieldTemperature   = "temperature"
	FieldMaxTokens     = "max_tokens"
	FieldTopP          = "top_p"
	FieldRepeatPenalty = "repeat_penalty"
	FieldContextWindow = "context_window"
	FieldGPULayers     = "gpu_layers"
	FieldEmbeddingType = "embedding_type"
)

// ModelConfig holds the process-wide generation and embedding selection.
// Values are immutable snapshots; updates produce a new value.
type ModelConfig struct {
	ModelType     ModelType
	ModelPath     string
	Temperature   float64
	MaxTokens     int
	TopP          float64
	RepeatPenalty float64
	ContextWindow int
	GPULayers     int
	EmbeddingType EmbeddingType

	// EmbeddingOverride is set when EmbeddingType was chosen explicitly
	// rather than derived from ModelType.
	EmbeddingOverride bool
}

// DefaultModelConfig returns the configuration used before any update.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ModelType:     ModelTypeHosted,
		Temperature:   0.1,
		MaxTokens:     512,
		TopP:          0.95,
		RepeatPenalty: 1.2,
		ContextWindow: 4096,
		GPULayers:     -1,
		EmbeddingType: EmbeddingHosted,
	}
}

// ConfigPatch is a partial configuration update. Nil fields are left unchanged.
type ConfigPatch struct {
	ModelType     *string
	ModelPath     *string
	Temperature   *float64
	MaxTokens     *int
	TopP          *float64
	RepeatPenalty *float64
	ContextWindow *int
	GPULayers     *int
	EmbeddingType *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ConfigPatch) IsEmpty() bool {
	return p.ModelType == nil && p.ModelPath == nil && p.Temperature == nil &&
		p.MaxTokens == nil && p.TopP == nil && p.RepeatPenalty == nil &&
		p.ContextWindow == nil && p.GPULayers == nil && p.EmbeddingType == nil
}

// Validate checks every field in the patch and returns all failures joined.
// Each failure is a *ConfigError naming its field.
func (p ConfigPatch) Validate() error {
	var errs []error
	if p.ModelType != nil {
		if t := ParseModelType(*p.ModelType); !t.IsValid() {
			errs = append(errs, NewConfigError(FieldModelType, "must be %q or %q, got %q",
				ModelTypeHosted, ModelTypeLocal, *p.ModelType))
		}
	}
	if p.Temperature != nil && !inRange(*p.Temperature, 0, 2) {
		errs = append(errs, NewConfigError(FieldTemperature, "must be between 0 and 2"))
	}
	if p.MaxTokens != nil && *p.MaxTokens < 1 {
		errs = append(errs, NewConfigError(FieldMaxTokens, "must be greater than 0"))
	}
	if p.TopP != nil && !inRange(*p.TopP, 0, 1) {
		errs = append(errs, NewConfigError(FieldTopP, "must be between 0 and 1"))
	}
	if p.RepeatPenalty != nil && (math.IsNaN(*p.RepeatPenalty) || *p.RepeatPenalty < 1) {
		errs = append(errs, NewConfigError(FieldRepeatPenalty, "must be greater than or equal to 1"))
	}
	if p.ContextWindow != nil && *p.ContextWindow < 1 {
		errs = append(errs, NewConfigError(FieldContextWindow, "must be greater than 0"))
	}
	if p.GPULayers != nil && *p.GPULayers < -1 {
		errs = append(errs, NewConfigError(FieldGPULayers, "must be greater than or equal to -1"))
	}
	if p.EmbeddingType != nil {
		t := ParseEmbeddingType(*p.EmbeddingType)
		if !t.IsValid() && t != EmbeddingAuto {
			errs = append(errs, NewConfigError(FieldEmbeddingType, "must be %q, %q or %q, got %q",
				EmbeddingHosted, EmbeddingLocal, EmbeddingAuto, *p.EmbeddingType))
		}
	}
	return errors.Join(errs...)
}

// Apply validates the whole patch and returns the updated configuration.
// If any field is invalid nothing is applied and the original is returned.
func (c ModelConfig) Apply(p ConfigPatch) (ModelConfig, error) {
	if err := p.Validate(); err != nil {
		return c, err
	}

	next := c
	if p.ModelType != nil {
		next.ModelType = ParseModelType(*p.ModelType)
	}
	if p.ModelPath != nil {
		next.ModelPath = strings.TrimSpace(*p.ModelPath)
	}
	if p.Temperature != nil {
		next.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		next.MaxTokens = *p.MaxTokens
	}
	if p.TopP != nil {
		next.TopP = *p.TopP
	}
	if p.RepeatPenalty != nil {
		next.RepeatPenalty = *p.RepeatPenalty
	}
	if p.ContextWindow != nil {
		next.ContextWindow = *p.ContextWindow
	}
	if p.GPULayers != nil {
		next.GPULayers = *p.GPULayers
	}

	if p.EmbeddingType != nil {
		if t := ParseEmbeddingType(*p.EmbeddingType); t == EmbeddingAuto {
			next.EmbeddingOverride = false
		} else {
			next.EmbeddingType = t
			next.EmbeddingOverride = true
		}
	}
	if !next.EmbeddingOverride {
		next.EmbeddingType = DefaultEmbeddingFor(next.ModelType)
	}

	return next, nil
}

// ParseConfigPatch builds a patch from string key/value pairs, as given on a
// command line. Unknown keys and malformed numbers are configuration errors.
func ParseConfigPatch(values map[string]string) (ConfigPatch, error) {
	var (
		p    ConfigPatch
		errs []error
	)
	for key, raw := range values {
		raw = strings.TrimSpace(raw)
		switch normaliseFieldName(key) {
		case FieldModelType:
			p.ModelType = &raw
		case FieldModelPath:
			p.ModelPath = &raw
		case FieldEmbeddingType:
			p.EmbeddingType = &raw
		case FieldTemperature:
			p.Temperature = parseFloat(key, raw, &errs)
		case FieldTopP:
			p.TopP = parseFloat(key, raw, &errs)
		case FieldRepeatPenalty:
			p.RepeatPenalty = parseFloat(key, raw, &errs)
		case FieldMaxTokens:
			p.MaxTokens = parseInt(key, raw, &errs)
		case FieldContextWindow:
			p.ContextWindow = parseInt(key, raw, &errs)
		case FieldGPULayers:
			p.GPULayers = parseInt(key, raw, &errs)
		default:
			errs = append(errs, NewConfigError(key, "unknown option"))
		}
	}
	return p, errors.Join(errs...)
}

// normaliseFieldName accepts the runtime-style aliases used by local model servers.
func normaliseFieldName(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	switch key {
	case "n_ctx":
		return FieldContextWindow
	case "n_gpu_layers":
		return FieldGPULayers
	default:
		return key
	}
}

func parseFloat(field, raw string, errs *[]error) *float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, NewConfigError(field, "not a number: %q", raw))
		return nil
	}
	return &v
}

func parseInt(field, raw string, errs *[]error) *int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, NewConfigError(field, "not an integer: %q", raw))
		return nil
	}
	return &v
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
