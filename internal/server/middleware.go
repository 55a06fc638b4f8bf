package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tasklist/internal/models"
	"tasklist/internal/storage/sqlite"
)

const (
	sessionCookie = "tasklist_session"

	handleKey  = "tasklist.handle"
	accountKey = "tasklist.account"
)

// withHandle acquires a store handle for the request and releases it once
// the rest of the chain has returned, whatever the outcome.
func (s *Server) withHandle(c *gin.Context) {
	h, err := s.store.Acquire(c.Request.Context())
	if err != nil {
		s.logger.Error("acquire store handle", slog.String("error", err.Error()))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}
	defer func() {
		if err := h.Release(); err != nil {
			s.logger.Warn("release store handle", slog.String("error", err.Error()))
		}
	}()

	c.Set(handleKey, h)
	c.Next()
}

// requireSession resolves the caller's session and stores the account for
// downstream handlers.
func (s *Server) requireSession(c *gin.Context) {
	acc, ok, err := handleFrom(c).Resolve(c.Request.Context(), sessionToken(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.Set(accountKey, acc)
	c.Next()
}

func handleFrom(c *gin.Context) *sqlite.Handle {
	return c.MustGet(handleKey).(*sqlite.Handle)
}

func accountFrom(c *gin.Context) models.Account {
	return c.MustGet(accountKey).(models.Account)
}

// sessionToken reads the token from the session cookie, falling back to a
// bearer Authorization header.
func sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
