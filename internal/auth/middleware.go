package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// BearerToken extracts the token from an Authorization header.
func BearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[len("bearer "):])
	return token, token != ""
}

// RequireSession enforces a bearer token backed by a live session.
func RequireSession(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		s, err := a.Resume(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// RequireRole rejects sessions whose user has none of the roles.
// Must run after RequireSession.
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := UserFrom(c)
		if !ok || !slices.Contains(roles, u.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// SessionFrom returns the session set by RequireSession.
func SessionFrom(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}

// UserFrom returns the authenticated user.
func UserFrom(c *gin.Context) (User, bool) {
	s, ok := SessionFrom(c)
	return s.User, ok
}
