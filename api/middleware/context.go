package middleware

import (
	"context"

	"github.com/thevault/register/pkg/auth"
)

type contextKey string

const (
	ctxSession    contextKey = "session"
	ctxRegisterID contextKey = "register_id"
)

// SessionFromContext returns the bearer session seeded by Session.
func SessionFromContext(ctx context.Context) (auth.Session, bool) {
	if ctx == nil {
		return auth.Session{}, false
	}
	s, ok := ctx.Value(ctxSession).(auth.Session)
	return s, ok
}

// WithSession injects the caller's session into the context.
func WithSession(ctx context.Context, s auth.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSession, s)
}

func RegisterIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRegisterID).(string); ok {
		return v
	}
	return ""
}

// WithRegisterID injects the till identifier for downstream handlers.
func WithRegisterID(ctx context.Context, registerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRegisterID, registerID)
}
