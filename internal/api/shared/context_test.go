package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTraceIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := SetTraceID(context.Background(), "trace-abc")
	assert.Equal(t, "trace-abc", GetTraceID(ctx))
}

func TestGetTraceIDMissing(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", GetTraceID(context.Background()))
}

func TestWithUserID(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	ctx := WithUserID(context.Background(), userID)
	got, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	assert.True(t, ok)
	assert.Equal(t, userID, got)
}

func TestGenerateTraceIDUnique(t *testing.T) {
	t.Parallel()

	a := GenerateTraceID()
	b := GenerateTraceID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
