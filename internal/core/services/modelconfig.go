package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure ModelConfigService implements the interface.
var _ driving.ModelConfigService = (*ModelConfigService)(nil)

// modelKeyPrefix namespaces model configuration in the config store.
const modelKeyPrefix = "model."

// ModelConfigSource provides the current model configuration snapshot.
type ModelConfigSource interface {
	Get() domain.ModelConfig
}

// ModelConfigService owns the process-wide model configuration.
// Readers get immutable snapshots; writers are serialised and swap the
// snapshot atomically after it has been persisted.
type ModelConfigService struct {
	store   driven.ConfigStore
	current atomic.Pointer[domain.ModelConfig]
	writeMu sync.Mutex
}

// NewModelConfigService loads the configuration from store.
// Invalid stored values are reported and the defaults are used instead.
func NewModelConfigService(store driven.ConfigStore) *ModelConfigService {
	s := &ModelConfigService{store: store}
	cfg := domain.DefaultModelConfig()
	s.current.Store(&cfg)

	if loaded, err := s.readStore(); err != nil {
		logger.Error("load model config from %s: %v", store.Path(), err)
	} else {
		s.current.Store(&loaded)
	}
	return s
}

// Get returns the current configuration snapshot.
func (s *ModelConfigService) Get() domain.ModelConfig {
	return *s.current.Load()
}

// Update validates and applies a partial update. Either every field in the
// patch is applied or none is; the error names every offending field.
func (s *ModelConfigService) Update(_ context.Context, patch domain.ConfigPatch) (domain.ModelConfig, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.Get()
	next, err := cur.Apply(patch)
	if err != nil {
		logger.Error("update model config: %v", err)
		return cur, err
	}

	if err := s.persist(next); err != nil {
		logger.Error("persist model config: %v", err)
		return cur, fmt.Errorf("save model config: %w", err)
	}

	s.current.Store(&next)
	if next.EmbeddingType != cur.EmbeddingType {
		logger.Info("Embedding type changed: %s -> %s", cur.EmbeddingType, next.EmbeddingType)
	}
	return next, nil
}

// Reload re-reads the config store, e.g. after the file was edited.
// The current snapshot is kept if the stored values are invalid.
func (s *ModelConfigService) Reload() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	next, err := s.readStore()
	if err != nil {
		logger.Error("reload model config: %v", err)
		return err
	}
	s.current.Store(&next)
	logger.Debug("Model config reloaded: type=%s embedding=%s", next.ModelType, next.EmbeddingType)
	return nil
}

// readStore builds a configuration from the stored keys on top of the defaults.
func (s *ModelConfigService) readStore() (domain.ModelConfig, error) {
	values := make(map[string]string)
	for _, field := range []string{
		domain.FieldModelType, domain.FieldModelPath, domain.FieldTemperature,
		domain.FieldMaxTokens, domain.FieldTopP, domain.FieldRepeatPenalty,
		domain.FieldContextWindow, domain.FieldGPULayers, domain.FieldEmbeddingType,
	} {
		if raw, ok := s.store.Get(modelKeyPrefix + field); ok {
			values[field] = formatValue(raw)
		}
	}

	patch, err := domain.ParseConfigPatch(values)
	if err != nil {
		return domain.ModelConfig{}, err
	}
	return domain.DefaultModelConfig().Apply(patch)
}

func (s *ModelConfigService) persist(cfg domain.ModelConfig) error {
	embedding := string(domain.EmbeddingAuto)
	if cfg.EmbeddingOverride {
		embedding = cfg.EmbeddingType.String()
	}

	values := []struct {
		field string
		value any
	}{
		{domain.FieldModelType, cfg.ModelType.String()},
		{domain.FieldModelPath, cfg.ModelPath},
		{domain.FieldTemperature, cfg.Temperature},
		{domain.FieldMaxTokens, cfg.MaxTokens},
		{domain.FieldTopP, cfg.TopP},
		{domain.FieldRepeatPenalty, cfg.RepeatPenalty},
		{domain.FieldContextWindow, cfg.ContextWindow},
		{domain.FieldGPULayers, cfg.GPULayers},
		{domain.FieldEmbeddingType, embedding},
	}
	for _, v := range values {
		if err := s.store.Set(modelKeyPrefix+v.field, v.value); err != nil {
			return fmt.Errorf("set %s: %w", v.field, err)
		}
	}
	return s.store.Save()
}

// formatValue renders a stored value the way it would be typed on a command line.
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
