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
)

// Notification action tags. They select the mail subject and body.
const (
	NotificationActionCreated       = "created"
	NotificationActionUpdated       = "updated"
	NotificationActionStatusUpdated = "status_updated"
)

// Common job construction errors
var (
	ErrNilMailer    = errors.New("mailer cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
	ErrNilTask      = errors.New("task cannot be nil")
	ErrNoRecipients = errors.New("task has no notification recipients")
)

// notificationRecipient is one addressee captured at enqueue time.
type notificationRecipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// notificationPayload is the serialized data stored for the job. The
// task fields are a snapshot; the job never re-reads the task row.
type notificationPayload struct {
	TaskID     uuid.UUID               `json:"task_id"`
	Title      string                  `json:"title"`
	Action     string                  `json:"action"`
	Recipients []notificationRecipient `json:"recipients"`
}

// NotificationJob implements the Job interface for emailing the task's
// creator and assignee about a change.
type NotificationJob struct {
	id      uuid.UUID
	payload notificationPayload
	mailer  mailer.Mailer
	logger  *slog.Logger
	status  JobStatus
}

// NewNotificationJob creates a notification job from a task loaded with
// its creator and assignee projections. The assignee is notified only
// when distinct from the creator.
func NewNotificationJob(
	task *domain.Task,
	action string,
	m mailer.Mailer,
	logger *slog.Logger,
) (*NotificationJob, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if m == nil {
		return nil, ErrNilMailer
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	var recipients []notificationRecipient
	if task.Creator != nil {
		recipients = append(recipients, notificationRecipient{
			Name:  task.Creator.Name,
			Email: task.Creator.Email,
		})
	}
	if task.Assignee != nil && task.Assignee.ID != task.CreatedBy {
		recipients = append(recipients, notificationRecipient{
			Name:  task.Assignee.Name,
			Email: task.Assignee.Email,
		})
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	return &NotificationJob{
		id: uuid.New(),
		payload: notificationPayload{
			TaskID:     task.ID,
			Title:      task.Title,
			Action:     action,
			Recipients: recipients,
		},
		mailer: m,
		logger: logger.With("job_type", JobTypeTaskNotification, "task_id", task.ID),
		status: JobStatusPending,
	}, nil
}

// NewNotificationJobReconstructor returns a Reconstructor that rebuilds
// notification jobs from persisted payloads during recovery.
func NewNotificationJobReconstructor(m mailer.Mailer, logger *slog.Logger) Reconstructor {
	return func(id uuid.UUID, data []byte) (Job, error) {
		var payload notificationPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification payload: %w", err)
		}

		return &NotificationJob{
			id:      id,
			payload: payload,
			mailer:  m,
			logger:  logger.With("job_type", JobTypeTaskNotification, "task_id", payload.TaskID),
			status:  JobStatusPending,
		}, nil
	}
}

// ID returns the job's unique identifier
func (j *NotificationJob) ID() uuid.UUID {
	return j.id
}

// Type returns the job type identifier
func (j *NotificationJob) Type() string {
	return JobTypeTaskNotification
}

// Payload returns the job data as a byte slice
func (j *NotificationJob) Payload() []byte {
	data, err := json.Marshal(j.payload)
	if err != nil {
		j.logger.Error("failed to marshal job payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current job status
func (j *NotificationJob) Status() JobStatus {
	return j.status
}

// Execute sends one mail per recipient. A delivery failure for one
// recipient is logged and does not block the others or fail the job.
func (j *NotificationJob) Execute(ctx context.Context) error {
	j.status = JobStatusProcessing

	if err := ctx.Err(); err != nil {
		j.status = JobStatusFailed
		return fmt.Errorf("job cancelled by context: %w", err)
	}

	subject := notificationSubject(j.payload.Action, j.payload.Title)

	sent := 0
	for _, recipient := range j.payload.Recipients {
		body := notificationBody(j.payload.Action, recipient.Name, j.payload.Title)

		if err := j.mailer.Send(ctx, recipient.Email, subject, body); err != nil {
			j.logger.Error("failed to send notification mail",
				"recipient", recipient.Email,
				"error", err)
			continue
		}
		sent++
	}

	j.status = JobStatusCompleted
	j.logger.Info("task notification sent",
		"action", j.payload.Action,
		"notified_users", sent)
	return nil
}

func notificationSubject(action, title string) string {
	switch action {
	case NotificationActionCreated:
		return "New Task Assigned: " + title
	case NotificationActionUpdated:
		return "Task Updated: " + title
	case NotificationActionStatusUpdated:
		return "Task Status Changed: " + title
	default:
		return "Task Notification: " + title
	}
}

func notificationBody(action, name, title string) string {
	var actionText string
	switch action {
	case NotificationActionCreated:
		actionText = "a new task has been assigned to you"
	case NotificationActionUpdated:
		actionText = "a task has been updated"
	case NotificationActionStatusUpdated:
		actionText = "the task status has been changed"
	default:
		actionText = "there is an update"
	}

	return fmt.Sprintf("Hello %s, %s for task: '%s'", name, actionText, title)
}
