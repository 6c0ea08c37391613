package wsproto

import "context"

type contextKey int

const (
	sessionIDKey contextKey = iota
	responderKey
)

// WithSessionID attaches the ID of the client that sent the request being
// dispatched, so handlers can look up or create per-session state (the
// Conversation Manager's dialog) without the gateway package depending on
// that package directly.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext returns the session ID attached by WithSessionID.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}

// Responder pushes a message directly to the requesting client, outside
// the single request/response pair Dispatch returns. Needed for
// extension_connect, which replies with status and then replays up to 50
// log events before any further live event.
type Responder func(msg *Message)

// WithResponder attaches the requesting client's direct-send function.
func WithResponder(ctx context.Context, r Responder) context.Context {
	return context.WithValue(ctx, responderKey, r)
}

// ResponderFromContext returns the responder attached by WithResponder.
func ResponderFromContext(ctx context.Context) (Responder, bool) {
	r, ok := ctx.Value(responderKey).(Responder)
	return r, ok
}
