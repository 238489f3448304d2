package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// FileInput describes one file for upload_documents. Exactly one of Path,
// Content or ContentBase64 must be set.
type FileInput struct {
	Name          string `json:"name,omitempty" jsonschema:"original filename, used to infer the document type"`
	Path          string `json:"path,omitempty" jsonschema:"path of a file readable by the server"`
	Content       string `json:"content,omitempty" jsonschema:"inline text content"`
	ContentBase64 string `json:"content_base64,omitempty" jsonschema:"base64 encoded binary content"`
	MIMEType      string `json:"mime_type,omitempty" jsonschema:"optional content type"`
}

// UploadInput is the input schema for the upload_documents tool.
type UploadInput struct {
	Files     []FileInput `json:"files" jsonschema:"files to extract and index"`
	SessionID string      `json:"session_id,omitempty" jsonschema:"session to attach the documents to"`
}

// UploadOutput is the output schema for the upload_documents tool.
type UploadOutput struct {
	DocumentIDs []string        `json:"document_ids"`
	TotalPages  int             `json:"total_pages"`
	Failures    []FailureOutput `json:"failures,omitempty"`
}

// FailureOutput reports a file that could not be processed.
type FailureOutput struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	Question    string   `json:"question" jsonschema:"the question to answer from the uploaded documents"`
	SessionID   string   `json:"session_id,omitempty" jsonschema:"conversation to continue; a new session is created when empty"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict retrieval to these documents"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	SessionID string         `json:"session_id"`
	Answer    string         `json:"answer"`
	Sources   []SourceOutput `json:"sources"`
	Model     string         `json:"model"`
}

// SourceOutput is an excerpt the answer was grounded on.
type SourceOutput struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Excerpt    string  `json:"excerpt"`
	Score      float64 `json:"score"`
}

// ConfigureInput is the input schema for the configure_model tool.
// Omitted fields keep their current value.
type ConfigureInput struct {
	ModelType     *string  `json:"model_type,omitempty" jsonschema:"hosted or local"`
	ModelPath     *string  `json:"model_path,omitempty" jsonschema:"path of a local model file"`
	Temperature   *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature between 0 and 2"`
	MaxTokens     *int     `json:"max_tokens,omitempty" jsonschema:"maximum tokens to generate"`
	TopP          *float64 `json:"top_p,omitempty" jsonschema:"nucleus sampling between 0 and 1"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty" jsonschema:"local model repeat penalty, at least 1"`
	ContextWindow *int     `json:"context_window,omitempty" jsonschema:"local model context size"`
	GPULayers     *int     `json:"gpu_layers,omitempty" jsonschema:"layers to offload to the GPU, -1 for all"`
	EmbeddingType *string  `json:"embedding_type,omitempty" jsonschema:"hosted, local or auto"`
}

// ConfigOutput is the model configuration returned by configure_model and get_model_config.
type ConfigOutput struct {
	ModelType         string  `json:"model_type"`
	ModelPath         string  `json:"model_path,omitempty"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int     `json:"max_tokens"`
	TopP              float64 `json:"top_p"`
	RepeatPenalty     float64 `json:"repeat_penalty"`
	ContextWindow     int     `json:"context_window"`
	GPULayers         int     `json:"gpu_layers"`
	EmbeddingType     string  `json:"embedding_type"`
	EmbeddingOverride bool    `json:"embedding_override"`
}

// EmptyInput is used by tools that take no arguments.
type EmptyInput struct{}

// SessionOutput is the output schema for the create_session tool.
type SessionOutput struct {
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "upload_documents",
		Description: "Extract, chunk and index documents so they can be queried",
	}, s.handleUpload)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chat",
		Description: "Ask a question answered from the uploaded documents",
	}, s.handleChat)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "configure_model",
		Description: "Update the generation and embedding configuration",
	}, s.handleConfigure)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_model_config",
		Description: "Show the current generation and embedding configuration",
	}, s.handleGetConfig)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_session",
		Description: "Start a new conversation session",
	}, s.handleCreateSession)
}

// handleUpload handles the upload_documents tool invocation.
func (s *Server) handleUpload(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UploadInput,
) (*mcp.CallToolResult, UploadOutput, error) {
	if len(input.Files) == 0 {
		return nil, UploadOutput{}, fmt.Errorf("%w: no files given", domain.ErrInvalidInput)
	}

	files := make([]driving.UploadFile, 0, len(input.Files))
	for i, f := range input.Files {
		file, err := decodeFile(f)
		if err != nil {
			return nil, UploadOutput{}, fmt.Errorf("file %d: %w", i, err)
		}
		files = append(files, file)
	}

	result, err := s.ports.Document.Upload(ctx, driving.UploadRequest{
		SessionID: input.SessionID,
		Files:     files,
	})
	if err != nil {
		logger.Error("mcp upload_documents: %v", err)
		return nil, UploadOutput{}, err
	}

	output := UploadOutput{
		DocumentIDs: result.DocumentIDs,
		TotalPages:  result.TotalPages,
	}
	for _, f := range result.Failures {
		output.Failures = append(output.Failures, FailureOutput{Name: f.Name, Error: f.Error})
	}
	if output.DocumentIDs == nil {
		output.DocumentIDs = []string{}
	}
	return nil, output, nil
}

// decodeFile resolves one FileInput into an upload.
func decodeFile(f FileInput) (driving.UploadFile, error) {
	set := 0
	for _, v := range []string{f.Path, f.Content, f.ContentBase64} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return driving.UploadFile{}, fmt.Errorf("%w: exactly one of path, content or content_base64 is required",
			domain.ErrInvalidInput)
	}

	file := driving.UploadFile{Name: f.Name, MIMEType: f.MIMEType}
	switch {
	case f.Path != "":
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return driving.UploadFile{}, fmt.Errorf("reading %s: %w", f.Path, err)
		}
		file.Data = data
		if file.Name == "" {
			file.Name = filepath.Base(f.Path)
		}
	case f.ContentBase64 != "":
		data, err := base64.StdEncoding.DecodeString(f.ContentBase64)
		if err != nil {
			return driving.UploadFile{}, fmt.Errorf("%w: content_base64: %v", domain.ErrInvalidInput, err)
		}
		file.Data = data
	default:
		file.Data = []byte(f.Content)
	}

	if file.Name == "" {
		return driving.UploadFile{}, fmt.Errorf("%w: name is required for inline content", domain.ErrInvalidInput)
	}
	return file, nil
}

// handleChat handles the chat tool invocation.
func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	sessionID := input.SessionID
	if sessionID == "" {
		session, err := s.ports.Session.Create(ctx)
		if err != nil {
			return nil, ChatOutput{}, err
		}
		sessionID = session.ID
	}

	resp, err := s.ports.Chat.Ask(ctx, driving.ChatRequest{
		Question:    input.Question,
		SessionID:   sessionID,
		DocumentIDs: input.DocumentIDs,
	})
	if err != nil {
		logger.Error("mcp chat: %v", err)
		return nil, ChatOutput{}, err
	}

	output := ChatOutput{
		SessionID: resp.SessionID,
		Answer:    resp.Answer,
		Sources:   make([]SourceOutput, len(resp.Sources)),
		Model:     resp.Model,
	}
	for i, src := range resp.Sources {
		output.Sources[i] = SourceOutput{
			DocumentID: src.DocumentID,
			ChunkIndex: src.ChunkIndex,
			Excerpt:    src.Excerpt,
			Score:      src.Score,
		}
	}
	return nil, output, nil
}

// handleConfigure handles the configure_model tool invocation.
func (s *Server) handleConfigure(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ConfigureInput,
) (*mcp.CallToolResult, ConfigOutput, error) {
	patch := domain.ConfigPatch{
		ModelType:     input.ModelType,
		ModelPath:     input.ModelPath,
		Temperature:   input.Temperature,
		MaxTokens:     input.MaxTokens,
		TopP:          input.TopP,
		RepeatPenalty: input.RepeatPenalty,
		ContextWindow: input.ContextWindow,
		GPULayers:     input.GPULayers,
		EmbeddingType: input.EmbeddingType,
	}
	if patch.IsEmpty() {
		return nil, configOutput(s.ports.ModelConfig.Get()), nil
	}

	cfg, err := s.ports.ModelConfig.Update(ctx, patch)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			logger.Warn("mcp configure_model rejected: %v", err)
		} else {
			logger.Error("mcp configure_model: %v", err)
		}
		return nil, ConfigOutput{}, err
	}
	return nil, configOutput(cfg), nil
}

// handleGetConfig handles the get_model_config tool invocation.
func (s *Server) handleGetConfig(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, ConfigOutput, error) {
	return nil, configOutput(s.ports.ModelConfig.Get()), nil
}

// handleCreateSession handles the create_session tool invocation.
func (s *Server) handleCreateSession(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, SessionOutput, error) {
	session, err := s.ports.Session.Create(ctx)
	if err != nil {
		logger.Error("mcp create_session: %v", err)
		return nil, SessionOutput{}, err
	}
	return nil, SessionOutput{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}

func configOutput(cfg domain.ModelConfig) ConfigOutput {
	return ConfigOutput{
		ModelType:         cfg.ModelType.String(),
		ModelPath:         cfg.ModelPath,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		TopP:              cfg.TopP,
		RepeatPenalty:     cfg.RepeatPenalty,
		ContextWindow:     cfg.ContextWindow,
		GPULayers:         cfg.GPULayers,
		EmbeddingType:     cfg.EmbeddingType.String(),
		EmbeddingOverride: cfg.EmbeddingOverride,
	}
}
