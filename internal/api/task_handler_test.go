package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/job"
	"github.com/phrazzld/taskboard-api/internal/platform/storage"
)

type taskHandlerFixture struct {
	handler     *TaskHandler
	taskStore   *fakeTaskStore
	reportStore *fakeReportStore
	submitter   *fakeSubmitter
	mailer      *fakeMailer
}

func newTaskHandlerFixture(t *testing.T, tasks ...*domain.Task) *taskHandlerFixture {
	t.Helper()

	taskStore := newFakeTaskStore(tasks...)
	reportStore := newFakeReportStore()
	submitter := &fakeSubmitter{}
	m := &fakeMailer{}
	blobStore := storage.NewBlobStoreWithFs(afero.NewMemMapFs(), "storage", discardLogger())

	return &taskHandlerFixture{
		handler:     NewTaskHandler(taskStore, reportStore, blobStore, submitter, m, discardLogger()),
		taskStore:   taskStore,
		reportStore: reportStore,
		submitter:   submitter,
		mailer:      m,
	}
}

func TestTaskHandlerList(t *testing.T) {
	t.Parallel()

	creator := uuid.New()
	fx := newTaskHandlerFixture(t, testTask(creator, nil), testTask(creator, nil), testTask(uuid.New(), nil))

	r := newRequest(t, http.MethodGet, "/api/tasks?status=all", nil, creator, nil)
	w := httptest.NewRecorder()
	fx.handler.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp TaskListResponse
	decodeBody(t, w, &resp)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 10, resp.PerPage)
	assert.Equal(t, 1, resp.TotalPages)
}

func TestTaskHandlerCreate(t *testing.T) {
	t.Parallel()

	creator := uuid.New()
	fx := newTaskHandlerFixture(t)

	due := time.Now().UTC().AddDate(0, 0, 14).Format("2006-01-02")
	body := jsonBody(t, CreateTaskRequest{
		Title:       "Write the launch plan",
		Description: "Outline milestones",
		Priority:    "high",
		DueDate:     &due,
	})
	r := newRequest(t, http.MethodPost, "/api/tasks", body, creator, nil)
	w := httptest.NewRecorder()
	fx.handler.Create(w, r)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp TaskResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "Task created successfully", resp.Message)
	require.NotNil(t, resp.Task)
	assert.Equal(t, "Write the launch plan", resp.Task.Title)
	assert.Equal(t, domain.TaskStatusPending, resp.Task.Status)
	assert.Equal(t, domain.TaskPriorityHigh, resp.Task.Priority)
	require.NotNil(t, resp.Task.DueDate)
	assert.Equal(t, due, resp.Task.DueDate.Format("2006-01-02"))

	// No assignee, so no notification is queued.
	assert.Empty(t, fx.submitter.jobs)
}

func TestTaskHandlerCreateRejectsPastDueDate(t *testing.T) {
	t.Parallel()

	creator := uuid.New()
	fx := newTaskHandlerFixture(t)

	due := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	body := jsonBody(t, CreateTaskRequest{
		Title:   "Backdated task",
		DueDate: &due,
	})
	r := newRequest(t, http.MethodPost, "/api/tasks", body, creator, nil)
	w := httptest.NewRecorder()
	fx.handler.Create(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, errorMessage(t, w), "after or equal to today")
}

func TestTaskHandlerCreateWithAssigneeQueuesNotification(t *testing.T) {
	t.Parallel()

	creator := uuid.New()
	assignee := uuid.New()
	fx := newTaskHandlerFixture(t)

	assigneeStr := assignee.String()
	body := jsonBody(t, CreateTaskRequest{
		Title:      "Review the design doc",
		AssignedTo: &assigneeStr,
	})
	r := newRequest(t, http.MethodPost, "/api/tasks", body, creator, nil)
	w := httptest.NewRecorder()
	fx.handler.Create(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{job.JobTypeTaskNotification}, fx.submitter.submittedTypes())
}

func TestTaskHandlerCreateValidation(t *testing.T) {
	t.Parallel()

	fx := newTaskHandlerFixture(t)

	body := jsonBody(t, CreateTaskRequest{Title: ""})
	r := newRequest(t, http.MethodPost, "/api/tasks", body, uuid.New(), nil)
	w := httptest.NewRecorder()
	fx.handler.Create(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "The title field is required", errorMessage(t, w))
}

func TestTaskHandlerShow(t *testing.T) {
	t.Parallel()

	creator := uuid.New()
	task := testTask(creator, nil)
	fx := newTaskHandlerFixture(t, task)

	r := newRequest(t, http.MethodGet, "/api/tasks/"+task.ID.String(), nil, creator,
		map[string]string{"id": task.ID.String()})
	w := httptest.NewRecorder()
	fx.handler.Show(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp TaskResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, task.ID, resp.Task.ID)
}

func TestTaskHandlerShowForbiddenForStranger(t *testing.T) {
	t.Parallel()

	task := testTask(uuid.New(), nil)
	fx := newTaskHandlerFixture(t, task)

	r := newRequest(t, http.MethodGet, "/api/tasks/"+task.ID.String(), nil, uuid.New(),
		map[string]string{"id": task.ID.String()})
	w := httptest.NewRecorder()
	fx.handler.Show(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTaskHandlerShowNotFound(t *testing.T) {
	t.Parallel()

	fx := newTaskHandlerFixture(t)
	missing := uuid.New()

	r := newRequest(t, http.MethodGet, "/api/tasks/"+missing.String(), nil, uuid.New(),
		map[string]string{"id": missing.String()})
	w := httptest.NewRecorder()
	fx.handler.Show(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Task not found", errorMessage(t, w))
}

func TestTaskHandlerUpdateStatusOnlySendsStatusNotification(t *testing.T) {
	t.Parallel()

	creator := uuid.New()
	task := testTask(creator, nil)
	fx := newTaskHandlerFixture(t, task)

	status := "completed"
	body := jsonBody(t, UpdateTaskRequest{Status: &status})
	r := newRequest(t, http.MethodPut, "/api/tasks/"+task.ID.String(), body, creator,
		map[string]string{"id": task.ID.String()})
	w := httptest.NewRecorder()
	fx.handler.Update(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp TaskResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, domain.TaskStatusCompleted, resp.Task.Status)

	require.Len(t, fx.submitter.jobs, 1)
	notifyJob, ok := fx.submitter.jobs[0].(*job.NotificationJob)
	require.True(t, ok)
	assert.Contains(t, string(notifyJob.Payload()), job.NotificationActionStatusUpdated)
}

func TestTaskHandlerUpdateMixedChangeSendsUpdateNotification(t *testing.T) {
	t.Parallel()

	creator := uuid.New()
	task := testTask(creator, nil)
	fx := newTaskHandlerFixture(t, task)

	title := "Ship the release candidate"
	status := "in_progress"
	body := jsonBody(t, UpdateTaskRequest{Title: &title, Status: &status})
	r := newRequest(t, http.MethodPut, "/api/tasks/"+task.ID.String(), body, creator,
		map[string]string{"id": task.ID.String()})
	w := httptest.NewRecorder()
	fx.handler.Update(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fx.submitter.jobs, 1)
	assert.Contains(t, string(fx.submitter.jobs[0].Payload()), `"action":"updated"`)
}

func TestTaskHandlerUpdateByAssignee(t *testing.T) {
	t.Parallel()

	assignee := uuid.New()
	task := testTask(uuid.New(), &assignee)
	fx := newTaskHandlerFixture(t, task)

	status := "in_progress"
	body := jsonBody(t, UpdateTaskRequest{Status: &status})
	r := newRequest(t, http.MethodPut, "/api/tasks/"+task.ID.String(), body, assignee,
		map[string]string{"id": task.ID.String()})
	w := httptest.NewRecorder()
	fx.handler.Update(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTaskHandlerDeleteCreatorOnly(t *testing.T) {
	t.Parallel()

	creator := uuid.New()
	assignee := uuid.New()
	task := testTask(creator, &assignee)
	fx := newTaskHandlerFixture(t, task)

	// The assignee may modify but not delete.
	r := newRequest(t, http.MethodDelete, "/api/tasks/"+task.ID.String(), nil, assignee,
		map[string]string{"id": task.ID.String()})
	w := httptest.NewRecorder()
	fx.handler.Delete(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r = newRequest(t, http.MethodDelete, "/api/tasks/"+task.ID.String(), nil, creator,
		map[string]string{"id": task.ID.String()})
	w = httptest.NewRecorder()
	fx.handler.Delete(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{task.ID}, fx.taskStore.deleted)
}

func TestTaskHandlerBulkUpdate(t *testing.T) {
	t.Parallel()

	creator := uuid.New()
	task := testTask(creator, nil)
	fx := newTaskHandlerFixture(t, task)

	status := "completed"
	body := jsonBody(t, BulkUpdateRequest{
		TaskIDs: []string{task.ID.String()},
		Status:  &status,
	})
	r := newRequest(t, http.MethodPost, "/api/tasks/bulk-update", body, creator, nil)
	w := httptest.NewRecorder()
	fx.handler.BulkUpdate(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{job.JobTypeBulkTaskUpdate}, fx.submitter.submittedTypes())
}

func TestTaskHandlerBulkUpdateRequiresChange(t *testing.T) {
	t.Parallel()

	fx := newTaskHandlerFixture(t)

	body := jsonBody(t, BulkUpdateRequest{TaskIDs: []string{uuid.New().String()}})
	r := newRequest(t, http.MethodPost, "/api/tasks/bulk-update", body, uuid.New(), nil)
	w := httptest.NewRecorder()
	fx.handler.BulkUpdate(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTaskHandlerGenerateReport(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	fx := newTaskHandlerFixture(t)

	body := jsonBody(t, GenerateReportRequest{
		ReportType: "csv",
		Status:     "completed",
		StartDate:  "2026-01-01",
	})
	r := newRequest(t, http.MethodPost, "/api/tasks/generate-report", body, userID, nil)
	w := httptest.NewRecorder()
	fx.handler.GenerateReport(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp ReportAcceptedResponse
	decodeBody(t, w, &resp)
	require.NotNil(t, resp.Report)
	assert.Equal(t, domain.ReportStatusProcessing, resp.Report.Status)
	assert.Equal(t, "completed", resp.Report.Filters.Status)

	// The row is persisted before the job is queued.
	reportID := uuid.MustParse(resp.ReportID)
	stored, err := fx.reportStore.GetByID(r.Context(), reportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusProcessing, stored.Status)
	assert.Equal(t, []string{job.JobTypeReportGeneration}, fx.submitter.submittedTypes())
}

func TestTaskHandlerGenerateReportInvalidDate(t *testing.T) {
	t.Parallel()

	fx := newTaskHandlerFixture(t)

	body := jsonBody(t, GenerateReportRequest{StartDate: "not-a-date"})
	r := newRequest(t, http.MethodPost, "/api/tasks/generate-report", body, uuid.New(), nil)
	w := httptest.NewRecorder()
	fx.handler.GenerateReport(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, fx.submitter.jobs)
}

func TestTaskHandlerGenerateReportEndBeforeStart(t *testing.T) {
	t.Parallel()

	fx := newTaskHandlerFixture(t)

	body := jsonBody(t, GenerateReportRequest{
		StartDate: "2026-08-20",
		EndDate:   "2026-08-10",
	})
	r := newRequest(t, http.MethodPost, "/api/tasks/generate-report", body, uuid.New(), nil)
	w := httptest.NewRecorder()
	fx.handler.GenerateReport(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, fx.submitter.jobs)
}
