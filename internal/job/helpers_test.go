package job

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// sentMail records one delivery attempt made through the mock mailer.
type sentMail struct {
	To      string
	Subject string
	Body    string
}

type mockMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	failFor map[string]error
}

func newMockMailer() *mockMailer {
	return &mockMailer{failFor: make(map[string]error)}
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failFor[to]; ok {
		return err
	}

	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *mockMailer) sentMails() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// fakeTaskStore is an in-memory store.TaskStore for job tests.
type fakeTaskStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*domain.Task
	updated []uuid.UUID

	getErr    error
	updateErr error
	listErr   error
}

func newFakeTaskStore(tasks ...*domain.Task) *fakeTaskStore {
	s := &fakeTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
	for _, task := range tasks {
		s.tasks[task.ID] = task
	}
	return s
}

func (s *fakeTaskStore) Create(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task, nil
}

func (s *fakeTaskStore) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.TaskFilter,
) (*store.TaskPage, error) {
	return &store.TaskPage{}, nil
}

func (s *fakeTaskStore) ListForReport(
	ctx context.Context,
	userID uuid.UUID,
	filter store.ReportTaskFilter,
) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	var tasks []*domain.Task
	for _, task := range s.tasks {
		if task.CreatedBy != userID &&
			(task.AssignedTo == nil || *task.AssignedTo != userID) {
			continue
		}
		if filter.Status != "" && string(task.Status) != filter.Status {
			continue
		}
		if filter.Priority != "" && string(task.Priority) != filter.Priority {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *fakeTaskStore) Update(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	s.tasks[task.ID] = task
	s.updated = append(s.updated, task.ID)
	return nil
}

func (s *fakeTaskStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

func (s *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return s
}

// fakeReportStore is an in-memory store.ReportStore for job tests.
type fakeReportStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*domain.Report

	completed map[uuid.UUID][2]string // id -> {filePath, filename}
	failed    map[uuid.UUID]string    // id -> error message
}

func newFakeReportStore(reports ...*domain.Report) *fakeReportStore {
	s := &fakeReportStore{
		reports:   make(map[uuid.UUID]*domain.Report),
		completed: make(map[uuid.UUID][2]string),
		failed:    make(map[uuid.UUID]string),
	}
	for _, r := range reports {
		s.reports[r.ID] = r
	}
	return s
}

func (s *fakeReportStore) Create(ctx context.Context, report *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
	return nil
}

func (s *fakeReportStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok {
		return nil, store.ErrReportNotFound
	}
	return report, nil
}

func (s *fakeReportStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	page int,
) (*store.ReportPage, error) {
	return &store.ReportPage{}, nil
}

func (s *fakeReportStore) MarkCompleted(
	ctx context.Context,
	id uuid.UUID,
	filePath, filename string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok || report.Status != domain.ReportStatusProcessing {
		return store.ErrReportNotFound
	}
	report.Status = domain.ReportStatusCompleted
	report.FilePath = filePath
	report.Filename = filename
	s.completed[id] = [2]string{filePath, filename}
	return nil
}

func (s *fakeReportStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok || report.Status != domain.ReportStatusProcessing {
		return store.ErrReportNotFound
	}
	report.Status = domain.ReportStatusFailed
	report.ErrorMessage = &errorMessage
	s.failed[id] = errorMessage
	return nil
}

func (s *fakeReportStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, id)
	return nil
}

func (s *fakeReportStore) WithTx(tx *sql.Tx) store.ReportStore {
	return s
}

// fakeSubmitter records jobs handed to it instead of running them.
type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []Job
	err       error
}

func (s *fakeSubmitter) Submit(ctx context.Context, j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, j)
	return nil
}

func (s *fakeSubmitter) submittedJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.submitted...)
}

// testTask builds a task with creator and assignee projections populated
// the way TaskStore.GetByID returns them.
func testTask(creatorID uuid.UUID, assigneeID *uuid.UUID) *domain.Task {
	now := time.Now().UTC()
	task := &domain.Task{
		ID:        uuid.New(),
		Title:     "Ship the release",
		Status:    domain.TaskStatusPending,
		Priority:  domain.TaskPriorityMedium,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
		Creator: &domain.UserRef{
			ID:    creatorID,
			Name:  "Creator",
			Email: "creator@example.com",
		},
	}
	if assigneeID != nil {
		task.AssignedTo = assigneeID
		task.Assignee = &domain.UserRef{
			ID:    *assigneeID,
			Name:  "Assignee",
			Email: "assignee@example.com",
		}
	}
	return task
}
