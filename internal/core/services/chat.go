package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// excerptRunes is how much of a retrieved chunk a source shows.
const excerptRunes = 200

// Ensure ChatService implements the interfaces.
var (
	_ driving.ChatService     = (*ChatService)(nil)
	_ driven.PromptStoreAware = (*ChatService)(nil)
)

// Retriever returns the chunks most relevant to a question.
type Retriever interface {
	Query(ctx context.Context, documentIDs []string, question string, k int) ([]domain.ScoredChunk, error)
}

// GeneratorSource returns the generator for a model configuration.
type GeneratorSource interface {
	Get(ctx context.Context, cfg domain.ModelConfig) (driven.Generator, error)
}

// ChatService answers one question at a time as a fixed sequence of stages.
// A failed stage stops the sequence; turns already recorded stay recorded.
type ChatService struct {
	sessions  driving.SessionService
	retriever Retriever
	selector  GeneratorSource
	config    ModelConfigSource
	post      driven.PostProcessorPipeline
	settings  SettingsSource
	prompts   promptBuilder
	docs      driven.DocumentStore
}

// ChatOption configures a ChatService.
type ChatOption func(*ChatService)

// WithRetrievalSettings reads top_k and history_turns from settings on
// every question.
func WithRetrievalSettings(settings SettingsSource) ChatOption {
	return func(s *ChatService) {
		s.settings = settings
	}
}

// WithDocumentStore makes the service skip document IDs that have no stored
// document instead of associating them with the session.
func WithDocumentStore(docs driven.DocumentStore) ChatOption {
	return func(s *ChatService) {
		s.docs = docs
	}
}

// WithPromptStore sets where prompt templates are loaded from.
func WithPromptStore(store driven.PromptStore) ChatOption {
	return func(s *ChatService) {
		s.prompts = promptBuilder{store: store}
	}
}

// NewChatService creates the conversation orchestrator.
func NewChatService(
	sessions driving.SessionService,
	retriever Retriever,
	selector GeneratorSource,
	config ModelConfigSource,
	post driven.PostProcessorPipeline,
	opts ...ChatOption,
) *ChatService {
	s := &ChatService{
		sessions:  sessions,
		retriever: retriever,
		selector:  selector,
		config:    config,
		post:      post,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *ChatService) SetPromptStore(store driven.PromptStore) {
	s.prompts = promptBuilder{store: store}
}

// turnState is the value carried between stages. Each stage returns a new
// value and never mutates the one it was given.
type turnState struct {
	stage     domain.Stage
	req       driving.ChatRequest
	cfg       domain.ModelConfig
	retrieval domain.RetrievalSettings
	history   []domain.Turn
	retrieved []domain.ScoredChunk
	model     string
	raw       string
	answer    string
}

type stage struct {
	reached domain.Stage
	run     func(context.Context, turnState) (turnState, error)
}

// Ask runs one question through retrieval, generation and cleanup.
func (s *ChatService) Ask(ctx context.Context, req driving.ChatRequest) (*driving.ChatResponse, error) {
	return s.ask(ctx, req, nil)
}

// AskStream is Ask with raw output fragments forwarded to onDelta when the
// generator streams.
func (s *ChatService) AskStream(
	ctx context.Context, req driving.ChatRequest, onDelta func(string) error,
) (*driving.ChatResponse, error) {
	return s.ask(ctx, req, onDelta)
}

func (s *ChatService) ask(
	ctx context.Context, req driving.ChatRequest, onDelta func(string) error,
) (*driving.ChatResponse, error) {
	req.Question = strings.TrimSpace(req.Question)
	st := turnState{
		stage:     domain.StageReceived,
		req:       req,
		cfg:       s.config.Get(),
		retrieval: s.retrievalSettings(),
	}

	if req.Question == "" {
		return nil, s.fail(st, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput))
	}

	stages := []stage{
		{domain.StageHistoryAppended, s.appendQuestion},
		{domain.StageDocsRetrieved, s.retrieve},
		{domain.StageGenerated, func(ctx context.Context, st turnState) (turnState, error) {
			return s.generate(ctx, st, onDelta)
		}},
		{domain.StagePostprocessed, s.postprocess},
		{domain.StageHistoryUpdated, s.recordAnswer},
	}

	logger.Section("Chat")
	for _, next := range stages {
		out, err := next.run(ctx, st)
		if err != nil {
			return nil, s.fail(st, err)
		}
		out.stage = next.reached
		st = out
		logger.Debug("Session %s: %s", req.SessionID, st.stage)
	}

	return &driving.ChatResponse{
		SessionID: req.SessionID,
		Answer:    st.answer,
		Sources:   sources(st.retrieved),
		Model:     st.model,
	}, nil
}

func (s *ChatService) fail(st turnState, err error) error {
	logger.Error("chat session %s after %s: %v", st.req.SessionID, st.stage, err)
	return &domain.StageError{Stage: st.stage, Err: err}
}

// appendQuestion records the user turn. The prior turns become the history.
func (s *ChatService) appendQuestion(ctx context.Context, st turnState) (turnState, error) {
	session, err := s.sessions.AppendTurn(ctx, st.req.SessionID, domain.Turn{
		Role: domain.RoleUser,
		Text: st.req.Question,
	})
	if err != nil {
		return st, err
	}

	turns := session.Turns
	st.history = turns[:len(turns)-1]
	if len(st.req.DocumentIDs) == 0 {
		st.req.DocumentIDs = session.DocumentIDs
	}
	return st, nil
}

// retrieve associates requested documents with the session and queries them.
func (s *ChatService) retrieve(ctx context.Context, st turnState) (turnState, error) {
	ids, err := s.knownDocuments(ctx, dedupeIDs(st.req.DocumentIDs))
	if err != nil {
		return st, err
	}
	if len(ids) == 0 {
		logger.Debug("No documents for session %s", st.req.SessionID)
		st.retrieved = nil
		return st, nil
	}

	if _, err := s.sessions.AddDocuments(ctx, st.req.SessionID, ids...); err != nil {
		return st, err
	}

	results, err := s.retriever.Query(ctx, ids, st.req.Question, st.retrieval.TopK)
	if err != nil {
		return st, fmt.Errorf("retrieve context: %w", err)
	}
	st.req.DocumentIDs = ids
	st.retrieved = results
	logger.Debug("Retrieved %d chunk(s) from %d document(s)", len(results), len(ids))
	return st, nil
}

// knownDocuments drops IDs with no stored document.
func (s *ChatService) knownDocuments(ctx context.Context, ids []string) ([]string, error) {
	if s.docs == nil {
		return ids, nil
	}
	known := ids[:0]
	for _, id := range ids {
		_, err := s.docs.GetDocument(ctx, id)
		switch {
		case err == nil:
			known = append(known, id)
		case errors.Is(err, domain.ErrNotFound):
			logger.Warn("Skipping unknown document %s", id)
		default:
			return nil, fmt.Errorf("get document %s: %w", id, err)
		}
	}
	return known, nil
}

func (s *ChatService) generate(ctx context.Context, st turnState, onDelta func(string) error) (turnState, error) {
	gen, err := s.selector.Get(ctx, st.cfg)
	if err != nil {
		return st, err
	}

	prompt, kept := s.prompts.build(contextText(st.retrieved), st.history, st.req.Question, st.cfg, st.retrieval.HistoryTurns)
	logger.Debug("Prompt: %d rune(s), %d of %d prior turn(s)", utf8.RuneCountInString(prompt), len(kept), len(st.history))

	opts := driven.OptionsFromConfig(st.cfg)
	opts.SystemPrompt = s.prompts.systemPrompt()

	// History is already rendered into the prompt.
	var raw string
	if streamer, ok := gen.(driven.StreamingGenerator); ok && onDelta != nil {
		raw, err = streamer.GenerateStream(ctx, prompt, nil, opts, onDelta)
	} else {
		raw, err = gen.Generate(ctx, prompt, nil, opts)
	}
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) || errors.Is(err, context.Canceled) {
			return st, err
		}
		return st, fmt.Errorf("%w: %s: %w", domain.ErrGenerationFailed, gen.ModelName(), err)
	}

	st.model = gen.ModelName()
	st.raw = raw
	return st, nil
}

func (s *ChatService) postprocess(_ context.Context, st turnState) (turnState, error) {
	st.answer = s.post.Process(st.raw)
	return st, nil
}

func (s *ChatService) recordAnswer(ctx context.Context, st turnState) (turnState, error) {
	if _, err := s.sessions.AppendTurn(ctx, st.req.SessionID, domain.Turn{
		Role: domain.RoleAssistant,
		Text: st.answer,
	}); err != nil {
		return st, err
	}
	return st, nil
}

// retrievalSettings returns the configured retrieval limits, falling back
// to the defaults for anything unset.
func (s *ChatService) retrievalSettings() domain.RetrievalSettings {
	r := domain.DefaultAppSettings().Retrieval
	if s.settings == nil {
		return r
	}
	settings, err := s.settings.Get()
	if err != nil {
		logger.Warn("load retrieval settings: %v", err)
		return r
	}
	if settings.Retrieval.TopK > 0 {
		r.TopK = settings.Retrieval.TopK
	}
	if settings.Retrieval.HistoryTurns >= 0 {
		r.HistoryTurns = settings.Retrieval.HistoryTurns
	}
	return r
}

// contextText joins chunk texts in score order.
func contextText(chunks []domain.ScoredChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk.Content
	}
	return strings.Join(texts, "\n\n")
}

func sources(chunks []domain.ScoredChunk) []driving.Source {
	out := make([]driving.Source, len(chunks))
	for i, c := range chunks {
		out[i] = driving.Source{
			DocumentID: c.Chunk.DocumentID,
			ChunkIndex: c.Chunk.Index,
			Excerpt:    excerpt(c.Chunk.Content),
			Score:      c.Score,
		}
	}
	return out
}

// excerpt returns the first excerptRunes runes followed by "...".
func excerpt(text string) string {
	r := []rune(text)
	if len(r) > excerptRunes {
		r = r[:excerptRunes]
	}
	return string(r) + "..."
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
