package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/api/middleware"
	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// AuthHandler handles registration, login, logout, and the current-user
// endpoint.
type AuthHandler struct {
	userStore        store.UserStore
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	logger           *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	userStore store.UserStore,
	jwtService auth.JWTService,
	passwordVerifier auth.PasswordVerifier,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:        userStore,
		jwtService:       jwtService,
		passwordVerifier: passwordVerifier,
		logger:           logger.With(slog.String("handler", "auth")),
	}
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, SanitizeValidationError(err), err)
		return
	}

	user, err := domain.NewUser(req.Name, req.Email, req.Password)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.userStore.Create(r.Context(), user); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	token, err := h.jwtService.GenerateToken(r.Context(), user.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusInternalServerError, "An internal error occurred", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, AuthResponse{
		Message: "User registered successfully",
		User:    user,
		Token:   token,
	})
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, SanitizeValidationError(err), err)
		return
	}

	user, err := h.userStore.GetByEmail(r.Context(), req.Email)
	if err != nil {
		// A missing user and a wrong password produce the same response
		// so login cannot be used to probe for registered emails.
		if errors.Is(err, store.ErrUserNotFound) {
			shared.RespondWithErrorAndLog(w, r, h.logger,
				http.StatusUnauthorized, "Invalid email or password", auth.ErrInvalidCredentials)
			return
		}
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusInternalServerError, "An internal error occurred", err)
		return
	}

	if err := h.passwordVerifier.Compare(user.HashedPassword, req.Password); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Invalid email or password", auth.ErrInvalidCredentials)
		return
	}

	token, err := h.jwtService.GenerateToken(r.Context(), user.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusInternalServerError, "An internal error occurred", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AuthResponse{
		Message: "Login successful",
		User:    user,
		Token:   token,
	})
}

// Logout handles POST /api/logout. Tokens are stateless, so logout only
// acknowledges; the client discards its token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{
		Message: "Logged out successfully",
	})
}

// Me handles GET /api/user, returning the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return
	}

	user, err := h.userStore.GetByID(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, UserResponse{User: user})
}
