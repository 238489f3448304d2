package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// SettingsSource supplies the provider settings a hosted generator is built from.
type SettingsSource interface {
	Get() (*domain.AppSettings, error)
}

// localLoad is one local model being loaded or already loaded.
// done is closed once gen or err is set.
type localLoad struct {
	done chan struct{}
	gen  driven.Generator
	err  error
}

// Selector returns the generator for the current model configuration.
// Hosted generators are cached per provider settings. Local generators are
// cached per absolute model path for the life of the process, and a path is
// loaded at most once even under concurrent requests.
type Selector struct {
	mu       sync.Mutex
	settings SettingsSource
	hostedFn driven.HostedGeneratorFactory
	families map[string]driven.LocalBackendFactory
	hosted   map[domain.LLMSettings]driven.Generator
	local    map[string]*localLoad
}

// NewSelector creates a selector with no local backend families.
// Register adds them.
func NewSelector(settings SettingsSource, hosted driven.HostedGeneratorFactory) *Selector {
	return &Selector{
		settings: settings,
		hostedFn: hosted,
		families: make(map[string]driven.LocalBackendFactory),
		hosted:   make(map[domain.LLMSettings]driven.Generator),
		local:    make(map[string]*localLoad),
	}
}

// Register adds a backend family for model files with extension ext.
// A later registration for the same extension replaces the earlier one.
func (s *Selector) Register(ext string, factory driven.LocalBackendFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[normaliseExt(ext)] = factory
}

// Supports reports whether a model file named name can be loaded.
func (s *Selector) Supports(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.families[normaliseExt(filepath.Ext(name))]
	return ok
}

// SupportedExtensions returns the registered extensions, sorted.
func (s *Selector) SupportedExtensions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	exts := make([]string, 0, len(s.families))
	for ext := range s.families {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Get returns the generator for cfg.
func (s *Selector) Get(ctx context.Context, cfg domain.ModelConfig) (driven.Generator, error) {
	switch cfg.ModelType {
	case domain.ModelTypeHosted:
		return s.getHosted()
	case domain.ModelTypeLocal:
		return s.getLocal(ctx, cfg)
	default:
		return nil, domain.NewConfigError(domain.FieldModelType, "unknown model type %q", cfg.ModelType)
	}
}

func (s *Selector) getHosted() (driven.Generator, error) {
	settings, err := s.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("load provider settings: %w", err)
	}
	llm := settings.HostedLLM
	if !llm.IsConfigured() {
		return nil, fmt.Errorf("%w: hosted provider %q is not configured", domain.ErrProviderUnavailable, llm.Provider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen, ok := s.hosted[llm]; ok {
		return gen, nil
	}

	gen, err := s.hostedFn(llm)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrProviderUnavailable, llm.Provider, err)
	}
	s.hosted[llm] = gen
	logger.Debug("Hosted generator %s/%s created", llm.Provider, gen.ModelName())
	return gen, nil
}

func (s *Selector) getLocal(ctx context.Context, cfg domain.ModelConfig) (driven.Generator, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, fmt.Errorf("%w: model_type is local but no model_path is set", domain.ErrProviderUnavailable)
	}
	path, err := filepath.Abs(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve model path: %w", domain.ErrProviderUnavailable, err)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: model file %s not found", domain.ErrProviderUnavailable, path)
	}

	s.mu.Lock()
	ext := normaliseExt(filepath.Ext(path))
	factory, ok := s.families[ext]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedModelFormat, filepath.Base(path))
	}
	load, loading := s.local[path]
	if !loading {
		load = &localLoad{done: make(chan struct{})}
		s.local[path] = load
	}
	s.mu.Unlock()

	if loading {
		select {
		case <-load.done:
			return load.gen, load.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	logger.Info("Loading local model %s", path)
	load.gen, load.err = factory(ctx, path, cfg)
	if load.err != nil {
		load.err = fmt.Errorf("%w: load %s: %w", domain.ErrProviderUnavailable, filepath.Base(path), load.err)
		s.mu.Lock()
		delete(s.local, path)
		s.mu.Unlock()
	}
	close(load.done)
	return load.gen, load.err
}

// Close releases every cached generator.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for key, gen := range s.hosted {
		errs = append(errs, gen.Close())
		delete(s.hosted, key)
	}
	for path, load := range s.local {
		select {
		case <-load.done:
			if load.gen != nil {
				errs = append(errs, load.gen.Close())
			}
			delete(s.local, path)
		default:
			// Still loading; the loader owns it.
		}
	}
	return errors.Join(errs...)
}

func normaliseExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
