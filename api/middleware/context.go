package middleware

import (
	"context"

	"github.com/angelmondragon/marketplace-checkout/internal/checkout"
)

type contextKey string

const (
	ctxSessionID contextKey = "session_id"
	ctxIdentity  contextKey = "identity"
	ctxRequestID contextKey = "request_id"
)

// RequestIDFromContext returns the id RequestID assigned, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

// WithRequestID injects the request identifier into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRequestID, requestID)
}

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// AuthenticatedFromContext returns the signed-in customer, if any.
func AuthenticatedFromContext(ctx context.Context) (checkout.Authenticated, bool) {
	if ctx == nil {
		return checkout.Authenticated{}, false
	}
	v, ok := ctx.Value(ctxIdentity).(checkout.Authenticated)
	return v, ok
}

// WithSessionID injects the client session identifier into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

// WithAuthenticated injects the signed-in customer into the context.
func WithAuthenticated(ctx context.Context, identity checkout.Authenticated) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}
