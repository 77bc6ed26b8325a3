package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

// Valid task statuses.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskPriority is the urgency level of a task.
type TaskPriority string

// Valid task priorities.
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Task validation errors.
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrEmptyTaskTitle   = errors.New("title cannot be empty")
	ErrTaskTitleTooLong = errors.New("title must be at most 255 characters long")
	ErrEmptyTaskCreator = errors.New("task creator cannot be empty")
)

// Task is the central work item. It is always owned by its creator and may
// additionally be assigned to another user. Tasks are soft-deleted: a
// non-nil DeletedAt hides the row from every read path.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	CreatedBy   uuid.UUID    `json:"created_by"`
	AssignedTo  *uuid.UUID   `json:"assigned_to,omitempty"`
	DeletedAt   *time.Time   `json:"-"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Creator and Assignee are populated by list/get queries for response
	// rendering; they are not authoritative state.
	Creator  *UserRef `json:"creator,omitempty"`
	Assignee *UserRef `json:"assignee,omitempty"`
}

// UserRef is a lightweight user projection embedded in task responses.
type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// NewTask creates a new Task for the given creator. Status defaults to
// pending and priority to medium when left empty.
func NewTask(
	title, description string,
	status TaskStatus,
	priority TaskPriority,
	dueDate *time.Time,
	createdBy uuid.UUID,
	assignedTo *uuid.UUID,
) (*Task, error) {
	if status == "" {
		status = TaskStatusPending
	}
	if priority == "" {
		priority = TaskPriorityMedium
	}

	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		DueDate:     dueDate,
		CreatedBy:   createdBy,
		AssignedTo:  assignedTo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Title == "" {
		return ErrEmptyTaskTitle
	}
	if len(t.Title) > 255 {
		return ErrTaskTitleTooLong
	}

	if !t.Status.IsValid() {
		return ErrInvalidTaskStatus
	}
	if !t.Priority.IsValid() {
		return ErrInvalidTaskPriority
	}

	if t.CreatedBy == uuid.Nil {
		return ErrEmptyTaskCreator
	}

	return nil
}

// IsValid reports whether the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// IsValid reports whether the priority is one of the allowed values.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// CanBeModifiedBy reports whether the given user may read or update the
// task. Only the creator and the current assignee qualify.
func (t *Task) CanBeModifiedBy(userID uuid.UUID) bool {
	if t.CreatedBy == userID {
		return true
	}
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// CanBeDeletedBy reports whether the given user may delete the task.
// Deletion is restricted to the creator.
func (t *Task) CanBeDeletedBy(userID uuid.UUID) bool {
	return t.CreatedBy == userID
}
