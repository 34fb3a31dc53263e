package internal

import (
	"context"
	"time"
)

// Principal is the authenticated actor attached to a request by the auth
// middleware. The authorization engine never reads it from ambient state;
// handlers pull it from context and pass it on explicitly.
type Principal struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type ctxKey string

const contextPrincipalKey ctxKey = "principal"

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextPrincipalKey).(*Principal)
	return p, ok
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, p)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if
// duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
