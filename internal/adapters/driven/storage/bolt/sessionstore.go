// Package bolt keeps sessions in a single bbolt database file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// DBFileName is the database file inside the data directory.
const DBFileName = "sessions.db"

var bucketSessions = []byte("sessions")

// Ensure SessionStore implements the interface.
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore stores JSON-encoded sessions keyed by ID.
type SessionStore struct {
	db *bbolt.DB
}

// NewSessionStore opens (or creates) the database at path.
func NewSessionStore(path string) (*SessionStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions bucket: %w", err)
	}

	return &SessionStore{db: db}, nil
}

// SaveSession stores or replaces a session.
func (s *SessionStore) SaveSession(_ context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(session.ID), data)
	})
}

// GetSession retrieves a session.
func (s *SessionStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return domain.ErrSessionNotFound
		}
		// data is only valid inside the transaction; Unmarshal copies it.
		return json.Unmarshal(data, &session)
	})
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// DeleteSession removes a session.
func (s *SessionStore) DeleteSession(_ context.Context, id string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		existed = b.Get([]byte(id)) != nil
		if !existed {
			return nil
		}
		return b.Delete([]byte(id))
	})
	return existed, err
}

// ListSessionIDs returns session IDs in key order.
func (s *SessionStore) ListSessionIDs(_ context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// Close closes the database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
