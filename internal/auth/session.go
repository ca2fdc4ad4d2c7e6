package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned for unknown, expired or revoked sessions.
var ErrSessionNotFound = errors.New("session not found")

// Session is a persisted login.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore persists sessions so they survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

// MemorySessions keeps sessions in process memory.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemorySessions creates an empty in-memory session store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: map[string]Session{}, now: time.Now}
}

func (m *MemorySessions) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()
	return nil
}

func (m *MemorySessions) Load(_ context.Context, token string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if !s.ExpiresAt.IsZero() && m.now().After(s.ExpiresAt) {
		delete(m.sessions, token)
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (m *MemorySessions) Ping(context.Context) error { return nil }
