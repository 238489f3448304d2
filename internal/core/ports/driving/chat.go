package driving

import "context"

// ChatService answers questions against uploaded documents.
type ChatService interface {
	// Ask runs one question through retrieval, generation and cleanup.
	// Returns domain.ErrSessionNotFound or domain.ErrSessionExpired for
	// unknown sessions. On failure the question stays in the session.
	Ask(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// AskStream behaves like Ask and forwards raw output fragments to
	// onDelta when the backend streams. The response holds the cleaned answer.
	AskStream(ctx context.Context, req ChatRequest, onDelta func(string) error) (*ChatResponse, error)
}

// ChatRequest is a question in a session.
type ChatRequest struct {
	Question  string
	SessionID string

	// DocumentIDs restricts retrieval. Empty falls back to the session's documents.
	DocumentIDs []string
}

// Source is a retrieved passage cited by an answer.
type Source struct {
	DocumentID string
	ChunkIndex int
	Excerpt    string
	Score      float64
}

// ChatResponse is the answer to a ChatRequest.
type ChatResponse struct {
	SessionID string
	Answer    string
	Sources   []Source
	Model     string
}
