package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/api/middleware"
	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/job"
	"github.com/phrazzld/taskboard-api/internal/platform/mailer"
	"github.com/phrazzld/taskboard-api/internal/platform/storage"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// TaskHandler handles task CRUD plus the asynchronous bulk update and
// report generation endpoints.
type TaskHandler struct {
	taskStore   store.TaskStore
	reportStore store.ReportStore
	blobStore   *storage.BlobStore
	submitter   job.Submitter
	mailer      mailer.Mailer
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	taskStore store.TaskStore,
	reportStore store.ReportStore,
	blobStore *storage.BlobStore,
	submitter job.Submitter,
	m mailer.Mailer,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		taskStore:   taskStore,
		reportStore: reportStore,
		blobStore:   blobStore,
		submitter:   submitter,
		mailer:      m,
		logger:      logger.With(slog.String("handler", "task")),
	}
}

// List handles GET /api/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	filter := store.TaskFilter{
		Status:        q.Get("status"),
		Priority:      q.Get("priority"),
		Search:        q.Get("search"),
		SortField:     q.Get("sort_by"),
		SortDirection: q.Get("sort_direction"),
		Page:          page,
	}

	result, err := h.taskStore.List(r.Context(), userID, filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	tasks := result.Tasks
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Data:       tasks,
		Page:       result.Page,
		PerPage:    result.PerPage,
		Total:      result.Total,
		TotalPages: totalPages(result.Total, result.PerPage),
	})
}

// Create handles POST /api/tasks. When the task is created with an
// assignee, an assignment notification is queued.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return
	}

	var req CreateTaskRequest
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

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, "The due_date field must be a valid date", err)
		return
	}
	if dueDate != nil && dueDate.Before(startOfToday()) {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, "The due_date field must be a date after or equal to today",
			fmt.Errorf("due date %s is in the past", dueDate.Format("2006-01-02")))
		return
	}
	assignedTo, err := parseOptionalUUID(req.AssignedTo)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, "The assigned_to field must be a valid UUID", err)
		return
	}

	task, err := domain.NewTask(
		req.Title, req.Description,
		domain.TaskStatus(req.Status), domain.TaskPriority(req.Priority),
		dueDate, userID, assignedTo,
	)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.taskStore.Create(r.Context(), task); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	created, err := h.taskStore.GetByID(r.Context(), task.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusInternalServerError, "An internal error occurred", err)
		return
	}

	if created.AssignedTo != nil {
		h.queueNotification(r, created, job.NotificationActionCreated)
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, TaskResponse{
		Message: "Task created successfully",
		Task:    created,
	})
}

// Show handles GET /api/tasks/{id}.
func (h *TaskHandler) Show(w http.ResponseWriter, r *http.Request) {
	userID, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	if !task.CanBeModifiedBy(userID) {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusForbidden, "You do not have permission to perform this action", domain.ErrUnauthorized)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskResponse{Task: task})
}

// Update handles PUT /api/tasks/{id}. A status-only change sends a
// status-change notification; any other change sends an update
// notification.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	if !task.CanBeModifiedBy(userID) {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusForbidden, "You do not have permission to perform this action", domain.ErrUnauthorized)
		return
	}

	var req UpdateTaskRequest
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

	statusChanged := false
	otherChanged := false

	if req.Title != nil && *req.Title != task.Title {
		task.Title = *req.Title
		otherChanged = true
	}
	if req.Description != nil && *req.Description != task.Description {
		task.Description = *req.Description
		otherChanged = true
	}
	if req.Status != nil && domain.TaskStatus(*req.Status) != task.Status {
		task.Status = domain.TaskStatus(*req.Status)
		statusChanged = true
	}
	if req.Priority != nil && domain.TaskPriority(*req.Priority) != task.Priority {
		task.Priority = domain.TaskPriority(*req.Priority)
		otherChanged = true
	}
	if req.DueDate != nil {
		dueDate, err := parseDueDate(req.DueDate)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, h.logger,
				http.StatusUnprocessableEntity, "The due_date field must be a valid date", err)
			return
		}
		if dueDate != nil && dueDate.Before(startOfToday()) {
			shared.RespondWithErrorAndLog(w, r, h.logger,
				http.StatusUnprocessableEntity, "The due_date field must be a date after or equal to today",
				fmt.Errorf("due date %s is in the past", dueDate.Format("2006-01-02")))
			return
		}
		task.DueDate = dueDate
		otherChanged = true
	}
	if req.AssignedTo != nil {
		assignedTo, err := parseOptionalUUID(req.AssignedTo)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, h.logger,
				http.StatusUnprocessableEntity, "The assigned_to field must be a valid UUID", err)
			return
		}
		task.AssignedTo = assignedTo
		otherChanged = true
	}

	if err := task.Validate(); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.taskStore.Update(r.Context(), task); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	updated, err := h.taskStore.GetByID(r.Context(), task.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusInternalServerError, "An internal error occurred", err)
		return
	}

	if statusChanged || otherChanged {
		action := job.NotificationActionUpdated
		if statusChanged && !otherChanged {
			action = job.NotificationActionStatusUpdated
		}
		h.queueNotification(r, updated, action)
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskResponse{
		Message: "Task updated successfully",
		Task:    updated,
	})
}

// Delete handles DELETE /api/tasks/{id}. Only the creator may delete.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	if !task.CanBeDeletedBy(userID) {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusForbidden, "You do not have permission to perform this action", domain.ErrUnauthorized)
		return
	}

	if err := h.taskStore.SoftDelete(r.Context(), task.ID); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{
		Message: "Task deleted successfully",
	})
}

// BulkUpdate handles POST /api/tasks/bulk-update by queueing a background
// job and returning 202.
func (h *TaskHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return
	}

	var req BulkUpdateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, SanitizeValidationError(err), err)
		return
	}

	taskIDs := make([]uuid.UUID, 0, len(req.TaskIDs))
	for _, raw := range req.TaskIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, h.logger,
				http.StatusUnprocessableEntity, "The task_ids field must contain valid UUIDs", err)
			return
		}
		taskIDs = append(taskIDs, id)
	}

	bulkJob, err := job.NewBulkUpdateJob(
		taskIDs, req.Status, req.Priority, userID,
		h.taskStore, h.submitter, h.mailer, h.logger,
	)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.submitter.Submit(r.Context(), bulkJob); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusInternalServerError, "Failed to queue bulk update", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, MessageResponse{
		Message: "Bulk update has been queued",
	})
}

// GenerateReport handles POST /api/tasks/generate-report by creating a
// processing report row, queueing the generation job, and returning 202.
func (h *TaskHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return
	}

	var req GenerateReportRequest
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

	report, err := domain.NewReport(userID, domain.ReportType(req.ReportType), domain.ReportFilters{
		Status:    req.Status,
		Priority:  req.Priority,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.reportStore.Create(r.Context(), report); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	reportJob, err := job.NewReportJob(report, h.reportStore, h.taskStore, h.blobStore, h.logger)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusInternalServerError, "An internal error occurred", err)
		return
	}

	if err := h.submitter.Submit(r.Context(), reportJob); err != nil {
		// The row stays in processing; the stuck-job monitor will retry it
		// if the process survives, so report the queue failure as-is.
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusInternalServerError, "Failed to queue report generation", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, ReportAcceptedResponse{
		Message:  "Report generation has been queued",
		ReportID: report.ID.String(),
		Report:   report,
	})
}

// loadTask parses the task ID from the URL and loads the task. On failure
// it writes the error response and returns ok=false.
func (h *TaskHandler) loadTask(w http.ResponseWriter, r *http.Request) (uuid.UUID, *domain.Task, bool) {
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

	return userID, task, true
}

// queueNotification builds and submits a notification job for the task.
// Queue failures are logged and swallowed; the triggering request has
// already succeeded.
func (h *TaskHandler) queueNotification(r *http.Request, task *domain.Task, action string) {
	notifyJob, err := job.NewNotificationJob(task, action, h.mailer, h.logger)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to build notification job",
			slog.String("task_id", task.ID.String()),
			slog.String("action", action),
			slog.String("error", err.Error()))
		return
	}
	if err := h.submitter.Submit(r.Context(), notifyJob); err != nil {
		h.logger.WarnContext(r.Context(), "failed to queue notification job",
			slog.String("task_id", task.ID.String()),
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

// parseDueDate converts an optional YYYY-MM-DD string into a UTC time.
// startOfToday returns midnight UTC of the current day, the floor for
// acceptable due dates on new tasks.
func startOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// parseOptionalUUID converts an optional UUID string. An empty string
// means "clear the field" and yields nil.
func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
