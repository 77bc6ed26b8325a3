package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MockJWTService is a mock implementation of the JWTService interface for testing.
// This is the single canonical mock implementation to be used in all tests.
type MockJWTService struct {
	// Function fields for custom behaviors
	GenerateTokenFunc func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateTokenFunc func(ctx context.Context, tokenString string) (*Claims, error)

	// Fixed fields for simple cases
	Token           string  // Default token to return
	TokenError      error   // Default error for token generation
	ValidationError error   // Default error for token validation
	Claims          *Claims // Default claims to return
}

// NewMockJWTService creates a new mock JWT service with default values.
// By default, it returns minimal values that will pass simple validation.
func NewMockJWTService() *MockJWTService {
	now := time.Now()
	userID := uuid.New()

	return &MockJWTService{
		Token: "mock-jwt-token",
		Claims: &Claims{
			UserID:    userID,
			TokenType: "access",
			Subject:   userID.String(),
			IssuedAt:  now,
			ExpiresAt: now.Add(1 * time.Hour),
			ID:        uuid.New().String(),
		},
	}
}

var _ JWTService = (*MockJWTService)(nil)

// GenerateToken implements the JWTService.GenerateToken method.
func (m *MockJWTService) GenerateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.GenerateTokenFunc != nil {
		return m.GenerateTokenFunc(ctx, userID)
	}
	return m.Token, m.TokenError
}

// ValidateToken implements the JWTService.ValidateToken method.
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, tokenString)
	}
	if m.ValidationError != nil {
		return nil, m.ValidationError
	}
	return m.Claims, nil
}
