package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/api/middleware"
	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// UserHandler serves the user listing used by the assignment picker.
type UserHandler struct {
	userStore store.UserStore
	logger    *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userStore store.UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userStore: userStore,
		logger:    logger.With(slog.String("handler", "user")),
	}
}

// List handles GET /api/users, returning every user except the caller.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return
	}

	users, err := h.userStore.ListOthers(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if users == nil {
		users = []*domain.User{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, UserListResponse{Users: users})
}
