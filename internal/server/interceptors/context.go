package interceptors

import (
	"context"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/session/domain"
)

type contextKey struct{ name string }

var sessionKey = contextKey{"session"}

// WithSession returns a context carrying the caller's session.
func WithSession(ctx context.Context, sess domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// GetSession returns the session from context and true if set; otherwise the zero Session, false.
func GetSession(ctx context.Context) (domain.Session, bool) {
	v, ok := ctx.Value(sessionKey).(domain.Session)
	return v, ok
}
