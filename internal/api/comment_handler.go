package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/api/middleware"
	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// CommentHandler handles comments on tasks.
type CommentHandler struct {
	commentStore store.CommentStore
	taskStore    store.TaskStore
	logger       *slog.Logger
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(
	commentStore store.CommentStore,
	taskStore store.TaskStore,
	logger *slog.Logger,
) *CommentHandler {
	return &CommentHandler{
		commentStore: commentStore,
		taskStore:    taskStore,
		logger:       logger.With(slog.String("handler", "comment")),
	}
}

// List handles GET /api/tasks/{id}/comments, newest first.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	_, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	comments, err := h.commentStore.ListByTask(r.Context(), task.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if comments == nil {
		comments = []*domain.Comment{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CommentListResponse{Comments: comments})
}

// Create handles POST /api/tasks/{id}/comments.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req CreateCommentRequest
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

	comment, err := domain.NewComment(task.ID, userID, req.Comment)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.commentStore.Create(r.Context(), comment); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, CommentResponse{
		Message: "Comment added successfully",
		Comment: comment,
	})
}

// Update handles PUT /api/comments/{id}. Only the author may edit.
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, comment, _, ok := h.loadComment(w, r)
	if !ok {
		return
	}

	if !comment.CanBeEditedBy(userID) {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusForbidden, "You do not have permission to perform this action", domain.ErrUnauthorized)
		return
	}

	var req UpdateCommentRequest
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

	comment.Comment = req.Comment
	comment.UpdatedAt = time.Now().UTC()
	if err := comment.Validate(); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.commentStore.Update(r.Context(), comment); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CommentResponse{
		Message: "Comment updated successfully",
		Comment: comment,
	})
}

// Delete handles DELETE /api/comments/{id}. The author and the task
// creator may delete.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, comment, task, ok := h.loadComment(w, r)
	if !ok {
		return
	}

	if !comment.CanBeDeletedBy(userID, task.CreatedBy) {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusForbidden, "You do not have permission to perform this action", domain.ErrUnauthorized)
		return
	}

	if err := h.commentStore.Delete(r.Context(), comment.ID); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{
		Message: "Comment deleted successfully",
	})
}

// loadTask parses the task ID from the URL, loads the task, and checks
// access.
func (h *CommentHandler) loadTask(w http.ResponseWriter, r *http.Request) (uuid.UUID, *domain.Task, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return uuid.Nil, nil, false
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusBadRequest, "Invalid task ID", err)
		return uuid.Nil, nil, false
	}

	task, err := h.taskStore.GetByID(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return uuid.Nil, nil, false
	}

	if !task.CanBeModifiedBy(userID) {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusForbidden, "You do not have permission to perform this action", domain.ErrUnauthorized)
		return uuid.Nil, nil, false
	}

	return userID, task, true
}

// loadComment parses the comment ID from the URL, loads the comment and
// its task, and checks that the caller may access the task.
func (h *CommentHandler) loadComment(w http.ResponseWriter, r *http.Request) (uuid.UUID, *domain.Comment, *domain.Task, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return uuid.Nil, nil, nil, false
	}

	commentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusBadRequest, "Invalid comment ID", err)
		return uuid.Nil, nil, nil, false
	}

	comment, err := h.commentStore.GetByID(r.Context(), commentID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return uuid.Nil, nil, nil, false
	}

	task, err := h.taskStore.GetByID(r.Context(), comment.TaskID)
	if err != nil {
		// A comment whose task is gone is gone too.
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusNotFound, "Comment not found", store.ErrCommentNotFound)
		return uuid.Nil, nil, nil, false
	}

	if !task.CanBeModifiedBy(userID) {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusForbidden, "You do not have permission to perform this action", domain.ErrUnauthorized)
		return uuid.Nil, nil, nil, false
	}

	return userID, comment, task, true
}
