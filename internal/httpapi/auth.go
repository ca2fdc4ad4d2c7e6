package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendboard/internal/attendance"
	"attendboard/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token     string              `json:"token,omitempty"`
	ExpiresAt int64               `json:"expires_at,omitempty"`
	User      auth.User           `json:"user"`
	Student   *attendance.Student `json:"student,omitempty"`
}

// profile attaches the roster record of a student login.
func (h *Handler) profile(u auth.User) *attendance.Student {
	switch u.Role {
	case auth.RoleStudent:
		if st, ok := h.store.Student(u.ID); ok {
			return &st
		}
	case auth.RoleAdmin:
	}
	return nil
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.metrics.Logins.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.metrics.Logins.WithLabelValues("error").Inc()
		h.log.Error("login failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	h.metrics.Logins.WithLabelValues("accepted").Inc()

	c.JSON(http.StatusOK, sessionResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.Unix(),
		User:      s.User,
		Student:   h.profile(s.User),
	})
}

// Session re-hydrates the identity behind the bearer token.
func (h *Handler) Session(c *gin.Context) {
	s, _ := auth.SessionFrom(c)
	c.JSON(http.StatusOK, sessionResponse{
		ExpiresAt: s.ExpiresAt.Unix(),
		User:      s.User,
		Student:   h.profile(s.User),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	s, _ := auth.SessionFrom(c)
	if err := h.auth.Logout(c.Request.Context(), s.Token); err != nil {
		h.log.Error("logout failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
