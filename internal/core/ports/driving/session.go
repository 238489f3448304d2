package driving

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// SessionService manages conversation sessions.
type SessionService interface {
	// Create starts a new session.
	Create(ctx context.Context) (*domain.Session, error)

	// Get returns a session and refreshes its last access time.
	// Expired sessions are deleted and reported as domain.ErrSessionExpired.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// Turns returns the conversation so far, oldest first.
	Turns(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// AddDocuments associates documents with a session.
	AddDocuments(ctx context.Context, sessionID string, documentIDs ...string) ([]string, error)

	// AppendTurn records a turn at the end of the conversation.
	AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) (*domain.Session, error)

	// Delete removes a session. Returns false if it did not exist.
	Delete(ctx context.Context, sessionID string) (bool, error)

	// CleanupExpired deletes every expired session and returns how many were removed.
	CleanupExpired(ctx context.Context) (int, error)
}
