package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// taskSortFields whitelists the columns a caller may sort a task listing
// by. Anything else falls back to created_at.
var taskSortFields = map[string]struct{}{
	"title":      {},
	"status":     {},
	"priority":   {},
	"due_date":   {},
	"created_at": {},
	"updated_at": {},
}

// taskColumns is the select list shared by every task read, including the
// creator and assignee projections joined from users.
const taskColumns = `
	t.id, t.title, t.description, t.status, t.priority, t.due_date,
	t.created_by, t.assigned_to, t.deleted_at, t.created_at, t.updated_at,
	c.id, c.name, c.email,
	a.id, a.name, a.email
`

const taskJoins = `
	FROM tasks t
	JOIN users c ON c.id = t.created_by
	LEFT JOIN users a ON a.id = t.assigned_to
`

// TaskStore implements the store.TaskStore interface using a PostgreSQL
// database as the storage backend.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskStore creates a new PostgreSQL implementation of the TaskStore
// interface.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*TaskStore)(nil)

// Create implements store.TaskStore.Create.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (id, title, description, status, priority, due_date,
			created_by, assigned_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.CreatedBy,
		task.AssignedTo,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during task creation",
				slog.String("task_id", task.ID.String()))
			return fmt.Errorf("%w: referenced user not found", store.ErrInvalidEntity)
		}
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("created_by", task.CreatedBy.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + taskJoins + `
		WHERE t.id = $1 AND t.deleted_at IS NULL
	`
	task, err := s.scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return task, nil
}

// List implements store.TaskStore.List.
func (s *TaskStore) List(
	ctx context.Context,
	userID uuid.UUID,
	filter store.TaskFilter,
) (*store.TaskPage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where := []string{
		"t.deleted_at IS NULL",
		"(t.created_by = $1 OR t.assigned_to = $1)",
	}
	args := []any{userID}

	if filter.Status != "" && filter.Status != "all" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if filter.Priority != "" && filter.Priority != "all" {
		args = append(args, filter.Priority)
		where = append(where, fmt.Sprintf("t.priority = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf(
			"(t.title ILIKE $%d OR t.description ILIKE $%d)", len(args), len(args)))
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")

	// Total count first, for the pagination envelope.
	var total int
	countQuery := "SELECT COUNT(*) FROM tasks t" + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		log.Error("failed to count tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	sortField := filter.SortField
	if _, ok := taskSortFields[sortField]; !ok {
		sortField = "created_at"
	}
	sortDirection := "DESC"
	if strings.EqualFold(filter.SortDirection, "asc") {
		sortDirection = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	args = append(args, store.TaskPageSize, (page-1)*store.TaskPageSize)

	query := "SELECT " + taskColumns + taskJoins + whereClause +
		fmt.Sprintf(" ORDER BY t.%s %s LIMIT $%d OFFSET $%d",
			sortField, sortDirection, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks, err := s.collectTasks(rows)
	if err != nil {
		return nil, MapError(err)
	}

	return &store.TaskPage{
		Tasks:   tasks,
		Total:   total,
		Page:    page,
		PerPage: store.TaskPageSize,
	}, nil
}

// ListForReport implements store.TaskStore.ListForReport.
func (s *TaskStore) ListForReport(
	ctx context.Context,
	userID uuid.UUID,
	filter store.ReportTaskFilter,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where := []string{
		"t.deleted_at IS NULL",
		"(t.created_by = $1 OR t.assigned_to = $1)",
	}
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		where = append(where, fmt.Sprintf("t.priority = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		where = append(where, fmt.Sprintf("t.created_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		where = append(where, fmt.Sprintf("t.created_at <= $%d", len(args)))
	}

	query := "SELECT " + taskColumns + taskJoins +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY t.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks for report", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks, err := s.collectTasks(rows)
	if err != nil {
		return nil, MapError(err)
	}
	return tasks, nil
}

// Update implements store.TaskStore.Update.
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	task.UpdatedAt = nowUTC()

	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4,
			due_date = $5, assigned_to = $6, updated_at = $7
		WHERE id = $8 AND deleted_at IS NULL
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.AssignedTo,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: referenced user not found", store.ErrInvalidEntity)
		}
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// SoftDelete implements store.TaskStore.SoftDelete.
func (s *TaskStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, nowUTC(), id)
	if err != nil {
		log.Error("failed to soft-delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		return err
	}

	log.Info("task soft-deleted", slog.String("task_id", id.String()))
	return nil
}

// WithTx implements store.TaskStore.WithTx.
func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &TaskStore{db: tx, logger: s.logger}
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one joined task row.
func (s *TaskStore) scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var description sql.NullString
	var dueDate, deletedAt sql.NullTime
	var assignedTo sql.Null[uuid.UUID]
	var creator domain.UserRef
	var assigneeID sql.Null[uuid.UUID]
	var assigneeName, assigneeEmail sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&task.Status,
		&task.Priority,
		&dueDate,
		&task.CreatedBy,
		&assignedTo,
		&deletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
		&creator.ID,
		&creator.Name,
		&creator.Email,
		&assigneeID,
		&assigneeName,
		&assigneeEmail,
	)
	if err != nil {
		return nil, err
	}

	task.Description = description.String
	if dueDate.Valid {
		t := dueDate.Time.UTC()
		task.DueDate = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		task.DeletedAt = &t
	}
	if assignedTo.Valid {
		id := assignedTo.V
		task.AssignedTo = &id
	}

	task.Creator = &creator
	if assigneeID.Valid {
		task.Assignee = &domain.UserRef{
			ID:    assigneeID.V,
			Name:  assigneeName.String,
			Email: assigneeEmail.String,
		}
	}

	return &task, nil
}

// collectTasks drains a task result set.
func (s *TaskStore) collectTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
