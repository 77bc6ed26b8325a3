package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
)

// TaskPageSize is the fixed page size for task and report listings.
const TaskPageSize = 10

// TaskFilter narrows and orders a task listing. Zero values mean "no
// constraint"; Status and Priority also accept the literal "all".
type TaskFilter struct {
	Status        string
	Priority      string
	Search        string // case-insensitive substring over title OR description
	SortField     string // whitelisted column; defaults to created_at
	SortDirection string // asc or desc; defaults to desc
	Page          int    // 1-based; defaults to 1
}

// ReportTaskFilter is the filter snapshot replayed by report generation.
// Date bounds apply to the task's creation time.
type ReportTaskFilter struct {
	Status    string
	Priority  string
	StartDate *time.Time
	EndDate   *time.Time
}

// TaskPage is one page of a task listing plus the total row count across
// all pages.
type TaskPage struct {
	Tasks   []*domain.Task
	Total   int
	Page    int
	PerPage int
}

// TaskStore defines the interface for task data persistence. All read
// paths exclude soft-deleted rows.
type TaskStore interface {
	// Create saves a new task.
	// Returns ErrInvalidEntity if the creator or assignee doesn't exist.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID with creator and assignee
	// projections populated.
	// Returns ErrTaskNotFound if the task does not exist or is soft-deleted.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List returns the page of tasks visible to userID (creator or
	// assignee) matching the filter.
	List(ctx context.Context, userID uuid.UUID, filter TaskFilter) (*TaskPage, error)

	// ListForReport returns all tasks visible to userID matching the
	// report filter snapshot, newest first, without pagination.
	ListForReport(ctx context.Context, userID uuid.UUID, filter ReportTaskFilter) ([]*domain.Task, error)

	// Update persists the task's mutable fields.
	// Returns ErrTaskNotFound if the task does not exist or is soft-deleted.
	Update(ctx context.Context, task *domain.Task) error

	// SoftDelete marks the task deleted without removing the row.
	// Returns ErrTaskNotFound if the task does not exist or is already
	// soft-deleted.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) TaskStore
}
