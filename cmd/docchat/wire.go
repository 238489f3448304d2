package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/custodia-labs/docchat/internal/adapters/driven/ai"
	"github.com/custodia-labs/docchat/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/blob"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/bolt"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/gobfile"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/jsonfile"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docchat/internal/adapters/driving/cli"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/services"
	"github.com/custodia-labs/docchat/internal/logger"
	"github.com/custodia-labs/docchat/internal/normalisers"
	"github.com/custodia-labs/docchat/internal/normalisers/docx"
	"github.com/custodia-labs/docchat/internal/normalisers/html"
	"github.com/custodia-labs/docchat/internal/normalisers/markdown"
	"github.com/custodia-labs/docchat/internal/normalisers/pdf"
	"github.com/custodia-labs/docchat/internal/normalisers/plaintext"
	"github.com/custodia-labs/docchat/internal/postprocessors"
	"github.com/custodia-labs/docchat/internal/postprocessors/chunker"
)

// app holds the wired services and everything that must be released on exit.
type app struct {
	services    cli.Services
	configStore *file.ConfigStore
	modelConfig *services.ModelConfigService
	prompts     *file.PromptStore
	scheduler   *services.Scheduler
	closers     []io.Closer
}

func newApp(dir string) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.configStore, err = file.NewConfigStore(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: open config: %w", domain.ErrConfiguration, err)
	}
	settingsSvc := services.NewSettingsService(a.configStore, ai.NewConfigValidator())
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: read settings: %w", domain.ErrConfiguration, err)
	}

	docs, index, err := a.openIndexBackend(dir, settings.Storage.IndexBackend)
	if err != nil {
		return nil, err
	}
	sessionStore, err := a.openSessionBackend(dir, settings.Storage.SessionBackend)
	if err != nil {
		return nil, err
	}
	modelStore, err := blob.NewModelStore(filepath.Join(dir, "models"))
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}

	chunk, err := chunker.New(
		chunker.WithChunkSize(settings.Chunking.Size),
		chunker.WithOverlap(settings.Chunking.Overlap),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: chunking: %w", domain.ErrConfiguration, err)
	}
	post, err := postprocessors.NewDefaultPipeline(nil)
	if err != nil {
		return nil, fmt.Errorf("build post-processing pipeline: %w", err)
	}
	a.prompts, err = file.NewPromptStore(filepath.Join(dir, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}

	a.modelConfig = services.NewModelConfigService(a.configStore)

	selector := services.NewSelector(settingsSvc, ai.CreateGenerator)
	for ext, factory := range ai.LocalBackends(settings.Runtime) {
		selector.Register(ext, factory)
	}
	a.closers = append(a.closers, selector)

	registry := services.NewIndexRegistry(
		ai.NewEmbeddingFactory(settingsSvc), a.modelConfig, docs, index, chunk,
	)
	a.closers = append(a.closers, registry)
	sessionSvc := services.NewSessionService(sessionStore)
	a.scheduler = services.NewScheduler(domain.DefaultSchedulerConfig(), sessionSvc)

	a.services = cli.Services{
		Chat: services.NewChatService(
			sessionSvc, registry, selector, a.modelConfig, post,
			services.WithRetrievalSettings(settingsSvc),
			services.WithPromptStore(a.prompts),
			services.WithDocumentStore(docs),
		),
		Document: services.NewDocumentService(
			normalisers.NewRegistry(pdf.New(), docx.New(), html.New(), markdown.New(), plaintext.New()),
			registry, docs, sessionSvc,
		),
		Session:     sessionSvc,
		Model:       services.NewModelService(modelStore, selector),
		ModelConfig: a.modelConfig,
		Settings:    settingsSvc,
	}
	return a, nil
}

func (a *app) openIndexBackend(dir, backend string) (driven.DocumentStore, driven.IndexStore, error) {
	switch backend {
	case domain.IndexBackendGob:
		store, err := gobfile.NewStore(filepath.Join(dir, "index"))
		if err != nil {
			return nil, nil, fmt.Errorf("open gob index: %w", err)
		}
		return store.DocumentStore(), store.IndexStore(), nil
	default:
		store, err := sqlite.NewStore(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite index: %w", err)
		}
		a.closers = append(a.closers, store)
		return store.DocumentStore(), store.IndexStore(), nil
	}
}

func (a *app) openSessionBackend(dir, backend string) (driven.SessionStore, error) {
	switch backend {
	case domain.SessionBackendMemory:
		return memory.NewSessionStore(), nil
	case domain.SessionBackendBolt:
		store, err := bolt.NewSessionStore(filepath.Join(dir, bolt.DBFileName))
		if err != nil {
			return nil, fmt.Errorf("open session db: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	default:
		store, err := jsonfile.NewSessionStore(filepath.Join(dir, "sessions"))
		if err != nil {
			return nil, fmt.Errorf("open session dir: %w", err)
		}
		return store, nil
	}
}

// watch reloads the model config and prompt templates when their files
// change on disk. It returns when ctx is done.
func (a *app) watch(ctx context.Context) {
	w, err := file.NewWatcher(0)
	if err != nil {
		logger.Warn("config watcher disabled: %v", err)
		return
	}
	defer func() { _ = w.Close() }()

	if err := w.WatchFile(a.configStore.Path(), func() {
		if err := a.modelConfig.Reload(); err != nil {
			logger.Warn("reload %s: %v", a.configStore.Path(), err)
		}
	}); err != nil {
		logger.Warn("watch %s: %v", a.configStore.Path(), err)
	}
	if err := os.MkdirAll(a.prompts.Dir(), 0700); err == nil {
		if err := w.WatchDir(a.prompts.Dir(), a.prompts.Reload); err != nil {
			logger.Warn("watch %s: %v", a.prompts.Dir(), err)
		}
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("config watcher: %v", err)
	}
}

// runScheduler sweeps expired sessions until ctx is done.
func (a *app) runScheduler(ctx context.Context) {
	if err := a.scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("scheduler: %v", err)
	}
}

// Close releases stores and loaded models in reverse order of opening.
func (a *app) Close() {
	if a.scheduler != nil {
		_ = a.scheduler.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warn("close: %v", err)
		}
	}
	a.closers = nil
}
