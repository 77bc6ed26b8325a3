package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/mailer"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// Submitter enqueues follow-up jobs. The Runner satisfies it.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// Bulk update job construction errors
var (
	ErrNilTaskStore = errors.New("task store cannot be nil")
	ErrNilSubmitter = errors.New("submitter cannot be nil")
	ErrEmptyTaskIDs = errors.New("task IDs cannot be empty")
	ErrEmptyUpdate  = errors.New("update must set status or priority")
)

// bulkUpdatePayload is the serialized data stored for the job. UserID is
// the acting user captured at enqueue time; authorization during
// execution is checked against it, not against live request state.
type bulkUpdatePayload struct {
	TaskIDs  []uuid.UUID `json:"task_ids"`
	Status   *string     `json:"status,omitempty"`
	Priority *string     `json:"priority,omitempty"`
	UserID   uuid.UUID   `json:"user_id"`
}

// BulkUpdateJob implements the Job interface for applying a status or
// priority change to a batch of tasks.
type BulkUpdateJob struct {
	id        uuid.UUID
	payload   bulkUpdatePayload
	taskStore store.TaskStore
	submitter Submitter
	mailer    mailer.Mailer
	logger    *slog.Logger
	status    JobStatus
}

// NewBulkUpdateJob creates a bulk update job acting as userID. At least
// one of status and priority must be set.
func NewBulkUpdateJob(
	taskIDs []uuid.UUID,
	status *string,
	priority *string,
	userID uuid.UUID,
	taskStore store.TaskStore,
	submitter Submitter,
	m mailer.Mailer,
	logger *slog.Logger,
) (*BulkUpdateJob, error) {
	if taskStore == nil {
		return nil, ErrNilTaskStore
	}
	if submitter == nil {
		return nil, ErrNilSubmitter
	}
	if m == nil {
		return nil, ErrNilMailer
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if len(taskIDs) == 0 {
		return nil, ErrEmptyTaskIDs
	}
	if status == nil && priority == nil {
		return nil, ErrEmptyUpdate
	}

	return &BulkUpdateJob{
		id: uuid.New(),
		payload: bulkUpdatePayload{
			TaskIDs:  taskIDs,
			Status:   status,
			Priority: priority,
			UserID:   userID,
		},
		taskStore: taskStore,
		submitter: submitter,
		mailer:    m,
		logger:    logger.With("job_type", JobTypeBulkTaskUpdate, "user_id", userID),
		status:    JobStatusPending,
	}, nil
}

// NewBulkUpdateJobReconstructor returns a Reconstructor that rebuilds
// bulk update jobs from persisted payloads during recovery.
func NewBulkUpdateJobReconstructor(
	taskStore store.TaskStore,
	submitter Submitter,
	m mailer.Mailer,
	logger *slog.Logger,
) Reconstructor {
	return func(id uuid.UUID, data []byte) (Job, error) {
		var payload bulkUpdatePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bulk update payload: %w", err)
		}

		return &BulkUpdateJob{
			id:        id,
			payload:   payload,
			taskStore: taskStore,
			submitter: submitter,
			mailer:    m,
			logger:    logger.With("job_type", JobTypeBulkTaskUpdate, "user_id", payload.UserID),
			status:    JobStatusPending,
		}, nil
	}
}

// ID returns the job's unique identifier
func (j *BulkUpdateJob) ID() uuid.UUID {
	return j.id
}

// Type returns the job type identifier
func (j *BulkUpdateJob) Type() string {
	return JobTypeBulkTaskUpdate
}

// Payload returns the job data as a byte slice
func (j *BulkUpdateJob) Payload() []byte {
	data, err := json.Marshal(j.payload)
	if err != nil {
		j.logger.Error("failed to marshal job payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current job status
func (j *BulkUpdateJob) Status() JobStatus {
	return j.status
}

// Execute applies the update to each task the captured user may modify.
// Missing and unauthorized tasks are skipped silently; each updated
// task gets an "updated" notification enqueued.
func (j *BulkUpdateJob) Execute(ctx context.Context) error {
	j.status = JobStatusProcessing
	j.logger.Info("starting bulk update", "task_count", len(j.payload.TaskIDs))

	if err := ctx.Err(); err != nil {
		j.status = JobStatusFailed
		return fmt.Errorf("job cancelled by context: %w", err)
	}

	updated := 0
	for _, taskID := range j.payload.TaskIDs {
		task, err := j.taskStore.GetByID(ctx, taskID)
		if err != nil {
			if errors.Is(err, store.ErrTaskNotFound) {
				j.logger.Debug("skipping missing task", "task_id", taskID)
				continue
			}
			j.status = JobStatusFailed
			return fmt.Errorf("failed to load task %s: %w", taskID, err)
		}

		if !task.CanBeModifiedBy(j.payload.UserID) {
			j.logger.Debug("skipping unauthorized task", "task_id", taskID)
			continue
		}

		if j.payload.Status != nil {
			task.Status = domain.TaskStatus(*j.payload.Status)
		}
		if j.payload.Priority != nil {
			task.Priority = domain.TaskPriority(*j.payload.Priority)
		}

		if err := j.taskStore.Update(ctx, task); err != nil {
			j.status = JobStatusFailed
			return fmt.Errorf("failed to update task %s: %w", taskID, err)
		}
		updated++

		notification, err := NewNotificationJob(task, NotificationActionUpdated, j.mailer, j.logger)
		if err != nil {
			j.logger.Error("failed to build notification for updated task",
				"task_id", taskID,
				"error", err)
			continue
		}
		if err := j.submitter.Submit(ctx, notification); err != nil {
			j.logger.Error("failed to enqueue notification for updated task",
				"task_id", taskID,
				"error", err)
		}
	}

	j.status = JobStatusCompleted
	j.logger.Info("bulk update completed", "updated_count", updated)
	return nil
}
