package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCredentials is returned when email and password do not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Authenticator performs the mocked login round-trip and manages sessions.
type Authenticator struct {
	Directory *Directory
	Sessions  SessionStore
	Issuer    string
	Key       string
	TTL       time.Duration
	// Delay simulates the network round-trip of a real identity provider.
	Delay time.Duration
}

// Login checks credentials and persists a new session.
func (a *Authenticator) Login(ctx context.Context, email, password string) (Session, error) {
	if a.Delay > 0 {
		timer := time.NewTimer(a.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return Session{}, ctx.Err()
		}
	}

	u, ok := a.Directory.Check(email, password)
	if !ok {
		return Session{}, ErrInvalidCredentials
	}

	token, exp, err := Issue(u, a.Issuer, a.Key, a.TTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	s := Session{Token: token, User: u, ExpiresAt: exp}
	if err := a.Sessions.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Resume re-hydrates a session from its token.
func (a *Authenticator) Resume(ctx context.Context, token string) (Session, error) {
	claims, err := Parse(token, a.Key, a.Issuer)
	if err != nil {
		return Session{}, ErrSessionNotFound
	}
	s, err := a.Sessions.Load(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if s.User.ID != claims.Subject {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// Logout forgets the session.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	return a.Sessions.Delete(ctx, token)
}
