// Package shared holds helpers used across the API layer: request context
// keys, JSON decoding and validation, and response writing.
package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions with
// other packages that store values in the request context.
type ContextKey string

const (
	// UserIDContextKey is the context key under which the authenticated
	// user's ID is stored by the auth middleware.
	UserIDContextKey ContextKey = "userID"

	// TraceIDKey is the context key under which the per-request trace ID
	// is stored by the trace middleware.
	TraceIDKey ContextKey = "traceID"
)

// WithUserID returns a new context carrying the authenticated user's ID.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// SetTraceID returns a new context carrying the given trace ID.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from the context. Returns the empty
// string when no trace ID has been set.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GenerateTraceID produces a random hex trace ID. Falls back to a
// timestamp-derived ID if the random source fails.
func GenerateTraceID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("trace-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
