package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tasklist/internal/models"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister creates a new account. It does not log the caller in.
func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	acc, err := handleFrom(c).Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"account": acc})
}

// handleLogin verifies credentials and opens a fresh session.
func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	ctx := c.Request.Context()
	h := handleFrom(c)

	acc, ok, err := h.Verify(ctx, req.Username, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !ok {
		s.respondError(c, models.ErrAuthenticationFailed)
		return
	}

	// any session the client already carried is replaced, never reused
	if err := h.EndSession(ctx, sessionToken(c)); err != nil {
		s.respondError(c, err)
		return
	}
	sess, err := h.StartSession(ctx, acc.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.setSessionCookie(c, sess.Token, int(sess.ExpiresAt.Sub(sess.CreatedAt).Seconds()))
	respondSuccess(c, http.StatusOK, gin.H{"account": acc, "token": sess.Token, "expires_at": sess.ExpiresAt})
}

// handleLogout ends the current session, if any.
func (s *Server) handleLogout(c *gin.Context) {
	if err := handleFrom(c).EndSession(c.Request.Context(), sessionToken(c)); err != nil {
		s.respondError(c, err)
		return
	}
	s.setSessionCookie(c, "", -1)
	respondSuccess(c, http.StatusOK, gin.H{"status": "logged out"})
}

// handleMe returns the account bound to the session.
func (s *Server) handleMe(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"account": accountFrom(c)})
}

func (s *Server) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", s.opts.CookieSecure, true)
}
