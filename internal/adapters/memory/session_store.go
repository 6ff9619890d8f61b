package memory

import (
	"context"
	"sync"
	"time"

	"github.com/chattyhq/export-service/internal/domain"
)

// SessionStore is a process-local session registry for dev and tests.
// Production deployments use the Redis adapter; this one loses all sessions on
// restart and relies on the sweep worker for expiry.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.ExportSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.ExportSession)}
}

func (s *SessionStore) Put(_ context.Context, session domain.ExportSession, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = session
	return nil
}

func (s *SessionStore) Get(_ context.Context, token string) (*domain.ExportSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := session
	return &cp, nil
}

func (s *SessionStore) MarkVerified(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return domain.ErrNotFound
	}
	session.MarkVerified(at)
	s.sessions[token] = session
	return nil
}

// ConsumeOnce holds the lock across the whole check-and-increment so two
// concurrent downloads can never both observe download_count == 0.
func (s *SessionStore) ConsumeOnce(_ context.Context, token string) (domain.ExportSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return domain.ExportSession{}, domain.ErrNotFound
	}
	if !session.Verified {
		return domain.ExportSession{}, domain.ErrNotVerified
	}
	if session.DownloadCount > 0 {
		return domain.ExportSession{}, domain.ErrAlreadyConsumed
	}
	session.DownloadCount = 1
	s.sessions[token] = session
	return session, nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *SessionStore) PurgeExpired(_ context.Context, now time.Time) ([]domain.ExportSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged []domain.ExportSession
	for token, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			purged = append(purged, session)
			delete(s.sessions, token)
		}
	}
	return purged, nil
}
