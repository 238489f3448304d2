package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

var testTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type fakeChatService struct {
	requests []driving.ChatRequest
	answer   string
	sources  []driving.Source
	err      error
}

func (f *fakeChatService) Ask(_ context.Context, req driving.ChatRequest) (*driving.ChatResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &driving.ChatResponse{
		SessionID: req.SessionID,
		Answer:    f.answer,
		Sources:   f.sources,
		Model:     "test-model",
	}, nil
}

func (f *fakeChatService) AskStream(
	ctx context.Context, req driving.ChatRequest, onDelta func(string) error,
) (*driving.ChatResponse, error) {
	resp, err := f.Ask(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, word := range strings.SplitAfter(resp.Answer, " ") {
		if err := onDelta(word); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

type fakeDocumentService struct {
	documents map[string]*domain.Document
	uploads   []driving.UploadRequest
	failures  []driving.UploadFailure
	uploadErr error
	deleted   []string
}

func (f *fakeDocumentService) Upload(_ context.Context, req driving.UploadRequest) (*driving.UploadResult, error) {
	f.uploads = append(f.uploads, req)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	result := &driving.UploadResult{Failures: f.failures}
	for i, file := range req.Files {
		id := fmt.Sprintf("doc-%d", i+1)
		f.documents[id] = &domain.Document{ID: id, Filename: file.Name, Content: string(file.Data), Pages: 1}
		result.DocumentIDs = append(result.DocumentIDs, id)
		result.TotalPages++
	}
	return result, nil
}

func (f *fakeDocumentService) List(_ context.Context) ([]driving.DocumentDetails, error) {
	var out []driving.DocumentDetails
	for _, d := range f.documents {
		out = append(out, driving.DocumentDetails{
			ID:        d.ID,
			Filename:  d.Filename,
			Title:     d.Title,
			MIMEType:  d.MIMEType,
			Pages:     d.Pages,
			Chars:     len(d.Content),
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

func (f *fakeDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return doc, nil
}

func (f *fakeDocumentService) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.documents, id)
	return nil
}

type fakeSessionService struct {
	sessions map[string]*domain.Session
	created  int
	expired  int
}

func (f *fakeSessionService) Create(_ context.Context) (*domain.Session, error) {
	f.created++
	s := domain.NewSession(fmt.Sprintf("session-%d", f.created), testTime)
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessionService) Get(_ context.Context, id string) (*domain.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

func (f *fakeSessionService) Turns(ctx context.Context, id string) ([]domain.Turn, error) {
	s, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Turns, nil
}

func (f *fakeSessionService) AddDocuments(ctx context.Context, id string, documentIDs ...string) ([]string, error) {
	s, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.AddDocuments(documentIDs...)
	return s.DocumentIDs, nil
}

func (f *fakeSessionService) AppendTurn(ctx context.Context, id string, turn domain.Turn) (*domain.Session, error) {
	s, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Turns = append(s.Turns, turn)
	return s, nil
}

func (f *fakeSessionService) Delete(_ context.Context, id string) (bool, error) {
	_, ok := f.sessions[id]
	delete(f.sessions, id)
	return ok, nil
}

func (f *fakeSessionService) CleanupExpired(_ context.Context) (int, error) {
	return f.expired, nil
}

type fakeModelService struct {
	stored map[string]string
	models []string
}

func (f *fakeModelService) UploadLocalModel(_ context.Context, filename string, data io.Reader) (string, error) {
	if !strings.HasSuffix(filename, ".gguf") {
		return "", fmt.Errorf("%w: %q (supported: %s)", domain.ErrUnsupportedModelFormat,
			filename, strings.Join(f.SupportedExtensions(), ", "))
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	path := "/models/" + filename
	f.stored[path] = string(b)
	f.models = append(f.models, path)
	return path, nil
}

func (f *fakeModelService) ListLocalModels(_ context.Context) ([]string, error) {
	return f.models, nil
}

func (f *fakeModelService) SupportedExtensions() []string {
	return []string{".gguf", ".ggml"}
}

type fakeModelConfigService struct {
	cfg     domain.ModelConfig
	updates int
}

func (f *fakeModelConfigService) Get() domain.ModelConfig {
	return f.cfg
}

func (f *fakeModelConfigService) Update(_ context.Context, patch domain.ConfigPatch) (domain.ModelConfig, error) {
	next, err := f.cfg.Apply(patch)
	if err != nil {
		return f.cfg, err
	}
	f.cfg = next
	f.updates++
	return next, nil
}

func (f *fakeModelConfigService) Reload() error {
	return nil
}

type fakeSettingsService struct {
	settings    domain.AppSettings
	saved       int
	validateErr error
}

func (f *fakeSettingsService) Get() (*domain.AppSettings, error) {
	s := f.settings
	return &s, nil
}

func (f *fakeSettingsService) Save(s *domain.AppSettings) error {
	f.settings = *s
	f.saved++
	return nil
}

func (f *fakeSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	f.settings.HostedLLM = domain.LLMSettings{Provider: provider, Model: model, APIKey: apiKey}
	f.saved++
	return nil
}

func (f *fakeSettingsService) SetEmbeddingProvider(t domain.EmbeddingType, model, apiKeyOrURL string) error {
	if t == domain.EmbeddingLocal {
		f.settings.LocalEmbedding.Model = model
		if apiKeyOrURL != "" {
			f.settings.LocalEmbedding.BaseURL = apiKeyOrURL
		}
	} else {
		f.settings.HostedEmbedding.Model = model
		if apiKeyOrURL != "" {
			f.settings.HostedEmbedding.APIKey = apiKeyOrURL
		}
	}
	f.saved++
	return nil
}

func (f *fakeSettingsService) ValidateEmbeddingConfig(_ domain.EmbeddingType) error {
	return f.validateErr
}

func (f *fakeSettingsService) ValidateLLMConfig() error {
	return f.validateErr
}

type testServices struct {
	chat        *fakeChatService
	documents   *fakeDocumentService
	sessions    *fakeSessionService
	models      *fakeModelService
	modelConfig *fakeModelConfigService
	settings    *fakeSettingsService
}

// setupTestServices installs fakes for every service and resets command
// flags when the test ends.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	ts := &testServices{
		chat:        &fakeChatService{answer: "Refunds are accepted within 30 days."},
		documents:   &fakeDocumentService{documents: map[string]*domain.Document{}},
		sessions:    &fakeSessionService{sessions: map[string]*domain.Session{}},
		models:      &fakeModelService{stored: map[string]string{}},
		modelConfig: &fakeModelConfigService{cfg: domain.DefaultModelConfig()},
		settings:    &fakeSettingsService{settings: domain.DefaultAppSettings()},
	}
	SetServices(Services{
		Chat:        ts.chat,
		Document:    ts.documents,
		Session:     ts.sessions,
		Model:       ts.models,
		ModelConfig: ts.modelConfig,
		Settings:    ts.settings,
	})
	t.Cleanup(func() {
		SetServices(Services{})
		resetFlags()
	})
	return ts
}

func resetFlags() {
	chatSessionID = ""
	chatDocIDs = nil
	chatStream = false
	chatSources = true
	uploadSessionID = ""
	showContent = false
	modelActivate = false
	configOutput = "text"
	dataDir = ""
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags()
	})

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
