package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
)

// AuthMiddleware validates bearer tokens and injects the authenticated
// user's ID into the request context.
type AuthMiddleware struct {
	jwtService auth.JWTService
	logger     *slog.Logger
}

// NewAuthMiddleware creates an AuthMiddleware backed by the given JWT
// service.
func NewAuthMiddleware(jwtService auth.JWTService, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		logger:     logger.With(slog.String("component", "auth_middleware")),
	}
}

// Authenticate rejects requests without a valid Authorization bearer
// token. On success the user ID from the token claims is stored under
// shared.UserIDContextKey.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			shared.RespondWithErrorAndLog(w, r, m.logger,
				http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			shared.RespondWithErrorAndLog(w, r, m.logger,
				http.StatusUnauthorized, "Invalid authorization header format", auth.ErrInvalidToken)
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), parts[1])
		if err != nil {
			message := "Invalid authentication token"
			if errors.Is(err, auth.ErrExpiredToken) {
				message = "Authentication token has expired"
			}
			shared.RespondWithErrorAndLog(w, r, m.logger,
				http.StatusUnauthorized, message, err)
			return
		}

		ctx := shared.WithUserID(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the authenticated user's ID from the request
// context. The boolean is false when the request did not pass through
// Authenticate.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	return userID, ok
}
