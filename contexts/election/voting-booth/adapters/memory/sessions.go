package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"ballotbooth/contexts/election/voting-booth/domain/entities"
	domainerrors "ballotbooth/contexts/election/voting-booth/domain/errors"
	"ballotbooth/contexts/election/voting-booth/ports"
)

// SessionStore keeps verification sessions for a single process. Sessions
// are deliberately not shared across replicas.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]entities.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]entities.Session)}
}

func (s *SessionStore) CreateSession(_ context.Context, session entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(session.SessionID)
	if key == "" {
		return domainerrors.ErrSessionNotFound
	}
	if _, exists := s.sessions[key]; exists {
		return domainerrors.ErrConflict
	}
	s.sessions[key] = session
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, sessionID string) (entities.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[strings.TrimSpace(sessionID)]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) AdvanceSession(
	_ context.Context,
	sessionID string,
	expected entities.Stage,
	next entities.Stage,
	voterID string,
	updatedAt time.Time,
) (entities.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(sessionID)
	session, ok := s.sessions[key]
	if !ok {
		return entities.Session{}, domainerrors.ErrSessionNotFound
	}
	if session.Stage != expected {
		return entities.Session{}, domainerrors.ErrInvalidTransition
	}
	if session.VoterID != "" && session.VoterID != voterID {
		return entities.Session{}, domainerrors.ErrInvalidTransition
	}
	session.Stage = next
	session.VoterID = voterID
	session.UpdatedAt = updatedAt.UTC()
	s.sessions[key] = session
	return session, nil
}

func (s *SessionStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, strings.TrimSpace(sessionID))
	return nil
}

func (s *SessionStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for key, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, key)
			purged++
		}
	}
	return purged, nil
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

var _ ports.SessionStore = (*SessionStore)(nil)
