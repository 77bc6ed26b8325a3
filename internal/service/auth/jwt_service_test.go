package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/phrazzld/taskboard-api/internal/config"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokenLifetime := 60 * time.Minute
	secret := "test-secret-that-is-long-enough-for-testing"
	userID := uuid.New()

	svc := NewTestJWTService(secret, tokenLifetime, func() time.Time {
		return fixedTime
	})

	t.Run("generates valid token", func(t *testing.T) {
		t.Parallel()

		token, err := svc.GenerateToken(context.Background(), userID)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := svc.ValidateToken(context.Background(), token)
		require.NoError(t, err)

		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, userID.String(), claims.Subject)
		assert.Equal(t, "access", claims.TokenType)
		// Compare Unix timestamps to avoid timezone issues
		assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
		assert.Equal(t, fixedTime.Add(tokenLifetime).Unix(), claims.ExpiresAt.Unix())
		assert.NotEmpty(t, claims.ID)
	})
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	secret := "test-secret-that-is-long-enough-for-testing"
	userID := uuid.New()

	t.Run("rejects expired token", func(t *testing.T) {
		t.Parallel()

		issueTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		issuer := NewTestJWTService(secret, time.Minute, func() time.Time {
			return issueTime
		})

		token, err := issuer.GenerateToken(context.Background(), userID)
		require.NoError(t, err)

		// Validate from a clock two hours later.
		validator := NewTestJWTService(secret, time.Minute, func() time.Time {
			return issueTime.Add(2 * time.Hour)
		})

		_, err = validator.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("rejects token signed with different secret", func(t *testing.T) {
		t.Parallel()

		now := time.Now()
		issuer := NewTestJWTService("another-secret-that-is-long-enough!!", time.Hour, func() time.Time {
			return now
		})
		validator := NewTestJWTService(secret, time.Hour, func() time.Time {
			return now
		})

		token, err := issuer.GenerateToken(context.Background(), userID)
		require.NoError(t, err)

		_, err = validator.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects malformed token", func(t *testing.T) {
		t.Parallel()

		svc := NewTestJWTService(secret, time.Hour, time.Now)

		_, err := svc.ValidateToken(context.Background(), "not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	t.Run("rejects short secret", func(t *testing.T) {
		t.Parallel()

		_, err := NewJWTService(config.AuthConfig{
			JWTSecret:            "short",
			TokenLifetimeMinutes: 60,
		})
		assert.Error(t, err)
	})

	t.Run("accepts valid config", func(t *testing.T) {
		t.Parallel()

		svc, err := NewJWTService(config.AuthConfig{
			JWTSecret:            "test-secret-that-is-long-enough-for-testing",
			TokenLifetimeMinutes: 60,
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestBcryptVerifier(t *testing.T) {
	t.Parallel()

	verifier := NewBcryptVerifier()

	hashed, err := bcrypt.GenerateFromPassword([]byte("correct horse battery staple"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, verifier.Compare(string(hashed), "correct horse battery staple"))
	assert.Error(t, verifier.Compare(string(hashed), "wrong password"))
}
