package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	response *driving.ChatResponse
	err      error
	lastReq  driving.ChatRequest
}

func (m *mockChatService) Ask(_ context.Context, req driving.ChatRequest) (*driving.ChatResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	resp := *m.response
	resp.SessionID = req.SessionID
	return &resp, nil
}

func (m *mockChatService) AskStream(
	ctx context.Context,
	req driving.ChatRequest,
	_ func(string) error,
) (*driving.ChatResponse, error) {
	return m.Ask(ctx, req)
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	result   *driving.UploadResult
	details  []driving.DocumentDetails
	document *domain.Document
	err      error
	lastReq  driving.UploadRequest
}

func (m *mockDocumentService) Upload(_ context.Context, req driving.UploadRequest) (*driving.UploadResult, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *mockDocumentService) List(_ context.Context) ([]driving.DocumentDetails, error) {
	return m.details, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}

// mockSessionService is a mock implementation of driving.SessionService.
type mockSessionService struct {
	session *domain.Session
	err     error
	created int
}

func (m *mockSessionService) Create(_ context.Context) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created++
	if m.session != nil {
		return m.session, nil
	}
	return domain.NewSession("new-session", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)), nil
}

func (m *mockSessionService) Get(_ context.Context, _ string) (*domain.Session, error) {
	return m.session, m.err
}

func (m *mockSessionService) Turns(_ context.Context, _ string) ([]domain.Turn, error) {
	if m.session == nil {
		return nil, m.err
	}
	return m.session.Turns, m.err
}

func (m *mockSessionService) AddDocuments(_ context.Context, _ string, ids ...string) ([]string, error) {
	return ids, m.err
}

func (m *mockSessionService) AppendTurn(_ context.Context, _ string, _ domain.Turn) (*domain.Session, error) {
	return m.session, m.err
}

func (m *mockSessionService) Delete(_ context.Context, _ string) (bool, error) {
	return m.err == nil, m.err
}

func (m *mockSessionService) CleanupExpired(_ context.Context) (int, error) {
	return 0, m.err
}

// mockModelConfigService is a mock implementation of driving.ModelConfigService.
type mockModelConfigService struct {
	cfg       domain.ModelConfig
	err       error
	lastPatch *domain.ConfigPatch
}

func (m *mockModelConfigService) Get() domain.ModelConfig {
	return m.cfg
}

func (m *mockModelConfigService) Update(_ context.Context, patch domain.ConfigPatch) (domain.ModelConfig, error) {
	m.lastPatch = &patch
	if m.err != nil {
		return m.cfg, m.err
	}
	next, err := m.cfg.Apply(patch)
	if err != nil {
		return m.cfg, err
	}
	m.cfg = next
	return next, nil
}

func (m *mockModelConfigService) Reload() error {
	return m.err
}

type mockPorts struct {
	chat   *mockChatService
	docs   *mockDocumentService
	sess   *mockSessionService
	config *mockModelConfigService
}

func newMockPorts() *mockPorts {
	return &mockPorts{
		chat:   &mockChatService{response: &driving.ChatResponse{Answer: "42", Model: "gpt-4o-mini"}},
		docs:   &mockDocumentService{},
		sess:   &mockSessionService{},
		config: &mockModelConfigService{cfg: domain.DefaultModelConfig()},
	}
}

func (m *mockPorts) ports() *Ports {
	return &Ports{
		Chat:        m.chat,
		Document:    m.docs,
		Session:     m.sess,
		ModelConfig: m.config,
	}
}
