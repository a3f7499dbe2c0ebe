// Package reqctx carries per-request values through a context.
package reqctx

import "context"

// contextKey is unexported so keys cannot collide with other packages.
type contextKey string

const (
	HeaderXRequestID = "X-Request-Id"

	requestIDKey contextKey = "request_id"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, or "" when there is none.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
