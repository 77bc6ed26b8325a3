package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/job"
	"github.com/phrazzld/taskboard-api/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRequest builds a request carrying the authenticated user's ID and
// optional chi URL parameters.
func newRequest(t *testing.T, method, target string, body io.Reader, userID uuid.UUID, params map[string]string) *http.Request {
	t.Helper()

	r := httptest.NewRequest(method, target, body)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	ctx := shared.WithUserID(r.Context(), userID)
	if len(params) > 0 {
		routeCtx := chi.NewRouteContext()
		for k, v := range params {
			routeCtx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return r.WithContext(ctx)
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(dst))
}

func testUser(name, email string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:             uuid.New(),
		Name:           name,
		Email:          email,
		HashedPassword: "$2a$10$hash",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func testTask(creatorID uuid.UUID, assigneeID *uuid.UUID) *domain.Task {
	now := time.Now().UTC()
	task := &domain.Task{
		ID:          uuid.New(),
		Title:       "Ship the release",
		Description: "Cut the final build",
		Status:      domain.TaskStatusPending,
		Priority:    domain.TaskPriorityMedium,
		CreatedBy:   creatorID,
		AssignedTo:  assigneeID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Creator:     &domain.UserRef{ID: creatorID, Name: "Creator", Email: "creator@example.com"},
	}
	if assigneeID != nil {
		task.Assignee = &domain.UserRef{ID: *assigneeID, Name: "Assignee", Email: "assignee@example.com"}
	}
	return task
}

// fakeUserStore is an in-memory store.UserStore.
type fakeUserStore struct {
	users     map[uuid.UUID]*domain.User
	createErr error
	listErr   error
}

func newFakeUserStore(users ...*domain.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) Create(ctx context.Context, user *domain.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	user.HashedPassword = "hashed:" + user.Password
	user.Password = ""
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *fakeUserStore) ListOthers(ctx context.Context, excludeID uuid.UUID) ([]*domain.User, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*domain.User
	for _, u := range s.users {
		if u.ID != excludeID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeUserStore) WithTx(tx *sql.Tx) store.UserStore { return s }

// fakeTaskStore is an in-memory store.TaskStore.
type fakeTaskStore struct {
	tasks     map[uuid.UUID]*domain.Task
	listPage  *store.TaskPage
	createErr error
	updateErr error
	deleted   []uuid.UUID
}

func newFakeTaskStore(tasks ...*domain.Task) *fakeTaskStore {
	s := &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
	for _, task := range tasks {
		s.tasks[task.ID] = task
	}
	return s
}

func (s *fakeTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if s.createErr != nil {
		return s.createErr
	}
	if task.Creator == nil {
		task.Creator = &domain.UserRef{ID: task.CreatedBy, Name: "Creator", Email: "creator@example.com"}
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task, nil
}

func (s *fakeTaskStore) List(ctx context.Context, userID uuid.UUID, filter store.TaskFilter) (*store.TaskPage, error) {
	if s.listPage != nil {
		return s.listPage, nil
	}
	var visible []*domain.Task
	for _, task := range s.tasks {
		if task.CanBeModifiedBy(userID) {
			visible = append(visible, task)
		}
	}
	return &store.TaskPage{
		Tasks:   visible,
		Total:   len(visible),
		Page:    1,
		PerPage: store.TaskPageSize,
	}, nil
}

func (s *fakeTaskStore) ListForReport(ctx context.Context, userID uuid.UUID, filter store.ReportTaskFilter) ([]*domain.Task, error) {
	var visible []*domain.Task
	for _, task := range s.tasks {
		if task.CanBeModifiedBy(userID) {
			visible = append(visible, task)
		}
	}
	return visible, nil
}

func (s *fakeTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeTaskStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return s }

// fakeAttachmentStore is an in-memory store.AttachmentStore.
type fakeAttachmentStore struct {
	attachments map[uuid.UUID]*domain.Attachment
	createErr   error
}

func newFakeAttachmentStore(attachments ...*domain.Attachment) *fakeAttachmentStore {
	s := &fakeAttachmentStore{attachments: make(map[uuid.UUID]*domain.Attachment)}
	for _, a := range attachments {
		s.attachments[a.ID] = a
	}
	return s
}

func (s *fakeAttachmentStore) Create(ctx context.Context, attachment *domain.Attachment) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.attachments[attachment.ID] = attachment
	return nil
}

func (s *fakeAttachmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	a, ok := s.attachments[id]
	if !ok {
		return nil, store.ErrAttachmentNotFound
	}
	return a, nil
}

func (s *fakeAttachmentStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Attachment, error) {
	var out []*domain.Attachment
	for _, a := range s.attachments {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAttachmentStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.attachments[id]; !ok {
		return store.ErrAttachmentNotFound
	}
	delete(s.attachments, id)
	return nil
}

func (s *fakeAttachmentStore) WithTx(tx *sql.Tx) store.AttachmentStore { return s }

// fakeCommentStore is an in-memory store.CommentStore.
type fakeCommentStore struct {
	comments map[uuid.UUID]*domain.Comment
}

func newFakeCommentStore(comments ...*domain.Comment) *fakeCommentStore {
	s := &fakeCommentStore{comments: make(map[uuid.UUID]*domain.Comment)}
	for _, c := range comments {
		s.comments[c.ID] = c
	}
	return s
}

func (s *fakeCommentStore) Create(ctx context.Context, comment *domain.Comment) error {
	s.comments[comment.ID] = comment
	return nil
}

func (s *fakeCommentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrCommentNotFound
	}
	return c, nil
}

func (s *fakeCommentStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error) {
	var out []*domain.Comment
	for _, c := range s.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCommentStore) Update(ctx context.Context, comment *domain.Comment) error {
	if _, ok := s.comments[comment.ID]; !ok {
		return store.ErrCommentNotFound
	}
	s.comments[comment.ID] = comment
	return nil
}

func (s *fakeCommentStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.comments[id]; !ok {
		return store.ErrCommentNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *fakeCommentStore) WithTx(tx *sql.Tx) store.CommentStore { return s }

// fakeReportStore is an in-memory store.ReportStore.
type fakeReportStore struct {
	reports   map[uuid.UUID]*domain.Report
	createErr error
}

func newFakeReportStore(reports ...*domain.Report) *fakeReportStore {
	s := &fakeReportStore{reports: make(map[uuid.UUID]*domain.Report)}
	for _, r := range reports {
		s.reports[r.ID] = r
	}
	return s
}

func (s *fakeReportStore) Create(ctx context.Context, report *domain.Report) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.reports[report.ID] = report
	return nil
}

func (s *fakeReportStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	r, ok := s.reports[id]
	if !ok {
		return nil, store.ErrReportNotFound
	}
	return r, nil
}

func (s *fakeReportStore) ListByUser(ctx context.Context, userID uuid.UUID, page int) (*store.ReportPage, error) {
	var out []*domain.Report
	for _, r := range s.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	if page < 1 {
		page = 1
	}
	return &store.ReportPage{
		Reports: out,
		Total:   len(out),
		Page:    page,
		PerPage: store.TaskPageSize,
	}, nil
}

func (s *fakeReportStore) MarkCompleted(ctx context.Context, id uuid.UUID, filePath, filename string) error {
	r, ok := s.reports[id]
	if !ok || r.Status != domain.ReportStatusProcessing {
		return store.ErrReportNotFound
	}
	r.Status = domain.ReportStatusCompleted
	r.FilePath = filePath
	r.Filename = filename
	return nil
}

func (s *fakeReportStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	r, ok := s.reports[id]
	if !ok || r.Status != domain.ReportStatusProcessing {
		return store.ErrReportNotFound
	}
	r.Status = domain.ReportStatusFailed
	r.ErrorMessage = &errorMessage
	return nil
}

func (s *fakeReportStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.reports[id]; !ok {
		return store.ErrReportNotFound
	}
	delete(s.reports, id)
	return nil
}

func (s *fakeReportStore) WithTx(tx *sql.Tx) store.ReportStore { return s }

// fakeSubmitter records submitted jobs.
type fakeSubmitter struct {
	jobs []job.Job
	err  error
}

func (s *fakeSubmitter) Submit(ctx context.Context, j job.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, j)
	return nil
}

// submittedTypes returns the types of all submitted jobs, in order.
func (s *fakeSubmitter) submittedTypes() []string {
	types := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		types = append(types, j.Type())
	}
	return types
}

// fakeMailer records sent mail.
type fakeMailer struct {
	sent []string
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.sent = append(m.sent, to)
	return nil
}

// errorMessage extracts the message field from an error response body.
func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp shared.ErrorResponse
	decodeBody(t, w, &resp)
	return resp.Message
}
