package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure SessionService implements the interface.
var _ driving.SessionService = (*SessionService)(nil)

// SessionService manages conversation state.
// Every read refreshes LastAccessed; a session found expired on read is
// deleted and reported as domain.ErrSessionExpired.
type SessionService struct {
	store driven.SessionStore
	locks *keyedMutex
	now   func() time.Time
	newID func() string
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionService) {
		s.now = now
	}
}

// WithIDGenerator overrides how session IDs are generated.
func WithIDGenerator(newID func() string) SessionOption {
	return func(s *SessionService) {
		s.newID = newID
	}
}

// NewSessionService creates a new session service.
func NewSessionService(store driven.SessionStore, opts ...SessionOption) *SessionService {
	s := &SessionService{
		store: store,
		locks: newKeyedMutex(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts an empty session.
func (s *SessionService) Create(ctx context.Context) (*domain.Session, error) {
	session := domain.NewSession(s.newID(), s.now())
	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	logger.Debug("Created session %s", session.ID)
	return session.Clone(), nil
}

// Get returns a live session and refreshes its LastAccessed timestamp.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.update(ctx, sessionID, func(*domain.Session) {})
}

// Turns returns a copy of the session's turns, oldest first.
func (s *SessionService) Turns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(session.Turns), nil
}

// AddDocuments associates documents with a session, ignoring duplicates.
// Returns the session's full document list.
func (s *SessionService) AddDocuments(ctx context.Context, sessionID string, documentIDs ...string) ([]string, error) {
	session, err := s.update(ctx, sessionID, func(session *domain.Session) {
		session.AddDocuments(documentIDs...)
	})
	if err != nil {
		return nil, err
	}
	return session.DocumentIDs, nil
}

// AppendTurn records a message. A zero timestamp is set to now.
func (s *SessionService) AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) (*domain.Session, error) {
	if turn.Role != domain.RoleUser && turn.Role != domain.RoleAssistant {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, turn.Role)
	}
	return s.update(ctx, sessionID, func(session *domain.Session) {
		if turn.Timestamp.IsZero() {
			turn.Timestamp = s.now()
		}
		session.Turns = append(session.Turns, turn)
	})
}

// Delete removes a session. Returns false if it did not exist.
func (s *SessionService) Delete(ctx context.Context, sessionID string) (bool, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	deleted, err := s.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return deleted, nil
}

// CleanupExpired deletes every expired session and returns how many were removed.
func (s *SessionService) CleanupExpired(ctx context.Context) (int, error) {
	ids, err := s.store.ListSessionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	removed := 0
	for _, id := range ids {
		expired, err := s.deleteIfExpired(ctx, id)
		if err != nil {
			logger.Error("cleanup session %s: %v", id, err)
			continue
		}
		if expired {
			removed++
		}
	}

	logger.Debug("Removed %d expired session(s)", removed)
	return removed, nil
}

func (s *SessionService) deleteIfExpired(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.store.GetSession(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !session.IsExpired(s.now()) {
		return false, nil
	}
	_, err = s.store.DeleteSession(ctx, id)
	return err == nil, err
}

// update loads a live session under its lock, applies fn, refreshes
// LastAccessed and saves it.
func (s *SessionService) update(
	ctx context.Context, sessionID string, fn func(*domain.Session),
) (*domain.Session, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if session.IsExpired(now) {
		if _, err := s.store.DeleteSession(ctx, sessionID); err != nil {
			logger.Error("delete expired session %s: %v", sessionID, err)
		}
		logger.Debug("Session %s expired (last accessed %s)", sessionID, session.LastAccessed.Format(time.RFC3339))
		return nil, domain.ErrSessionExpired
	}

	fn(session)
	session.LastAccessed = now
	if err := s.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session.Clone(), nil
}
