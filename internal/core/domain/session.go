package domain

import (
	"slices"
	"time"
)

// SessionTimeout is how long a session survives without being read.
const SessionTimeout = 24 * time.Hour

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the conversation state for one session identifier.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	DocumentIDs  []string  `json:"document_ids"`
	Turns        []Turn    `json:"turns"`
}

// NewSession creates an empty session stamped with now.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastAccessed: now,
		DocumentIDs:  []string{},
		Turns:        []Turn{},
	}
}

// IsExpired reports whether the session timed out, measured from LastAccessed.
func (s *Session) IsExpired(now time.Time) bool {
	return now.Sub(s.LastAccessed) > SessionTimeout
}

// AddDocuments associates document IDs with the session, ignoring duplicates.
// Returns true if anything was added.
func (s *Session) AddDocuments(ids ...string) bool {
	added := false
	for _, id := range ids {
		if id == "" || slices.Contains(s.DocumentIDs, id) {
			continue
		}
		s.DocumentIDs = append(s.DocumentIDs, id)
		added = true
	}
	return added
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.DocumentIDs = slices.Clone(s.DocumentIDs)
	c.Turns = slices.Clone(s.Turns)
	if c.DocumentIDs == nil {
		c.DocumentIDs = []string{}
	}
	if c.Turns == nil {
		c.Turns = []Turn{}
	}
	return &c
}
