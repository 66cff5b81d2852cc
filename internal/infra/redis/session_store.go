package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Play sessions hold timers and subscribers, so the live objects stay in a
//     local map on the instance that started them.
//   - Redis marks session liveness (play:session:{id} -> user) with a TTL so
//     other instances and operators can see which sessions are in flight.
//     Touch extends the TTL while the session is played.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*app.PlaySession
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*app.PlaySession),
	}
}

func (s *SessionStore) Put(session *app.PlaySession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	if err := s.client.Set(context.Background(), s.key(session.ID), session.UserID, s.ttl).Err(); err != nil {
		s.logger.Warn("set session liveness marker failed", "session_id", session.ID, "error", err)
	}
}

func (s *SessionStore) Get(sessionID string) (*app.PlaySession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

// Touch re-arms the liveness marker of a local session.
func (s *SessionStore) Touch(sessionID string) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	// SET rather than EXPIRE so a marker that already lapsed comes back
	if err := s.client.Set(context.Background(), s.key(sessionID), session.UserID, s.ttl).Err(); err != nil {
		s.logger.Warn("refresh session liveness marker failed", "session_id", sessionID, "error", err)
	}
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	if err := s.client.Del(context.Background(), s.key(sessionID)).Err(); err != nil {
		s.logger.Warn("clear session liveness marker failed", "session_id", sessionID, "error", err)
	}
}

func (s *SessionStore) key(sessionID string) string {
	return "play:session:" + sessionID
}
