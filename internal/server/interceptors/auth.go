// Package interceptors holds the HTTP middleware shared by every route: session cookie
// handling, request tracing, and access logging.
package interceptors

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/security"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/session/domain"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/session/store"
)

// SessionCookie is the name of the cookie carrying the signed session id.
const SessionCookie = "itoi_session"

// Sessions loads the session named by the cookie into the request context.
// A missing, badly signed or expired cookie leaves the request without a session.
type Sessions struct {
	store  store.Store
	tokens *security.SessionTokens
	secure bool
}

// NewSessions returns session middleware. secure marks issued cookies Secure (deploy mode).
func NewSessions(st store.Store, tokens *security.SessionTokens, secure bool) *Sessions {
	return &Sessions{store: st, tokens: tokens, secure: secure}
}

// Load is the gin middleware resolving the cookie to a stored session.
func (s *Sessions) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(SessionCookie)
		if err != nil || raw == "" {
			c.Next()
			return
		}
		id, err := s.tokens.Validate(raw)
		if err != nil {
			c.Next()
			return
		}
		sess, ok := s.store.Get(c.Request.Context(), id)
		if !ok {
			c.Next()
			return
		}
		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

// Ensure returns the caller's session, creating one and setting its cookie when absent.
func (s *Sessions) Ensure(c *gin.Context) (domain.Session, error) {
	if sess, ok := GetSession(c.Request.Context()); ok {
		return sess, nil
	}
	sess := s.store.Create(c.Request.Context())
	token, _, err := s.tokens.Issue(sess.ID)
	if err != nil {
		return domain.Session{}, err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(s.tokens.TTL().Seconds()), "/", "", s.secure, true)
	c.Request = c.Request.WithContext(WithSession(c.Request.Context(), sess))
	return sess, nil
}

// RequireSession aborts with 401 when the request carries no session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetSession(c.Request.Context()); !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// RequireBound aborts with 401 when the session has no provisioned folder.
func RequireBound() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := GetSession(c.Request.Context())
		if !ok || !sess.Bound() {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
