package job

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a background job
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job type constants
const (
	// JobTypeBulkTaskUpdate applies a status or priority change to a batch of tasks
	JobTypeBulkTaskUpdate = "bulk_task_update"

	// JobTypeReportGeneration renders a filtered task export and stores the file
	JobTypeReportGeneration = "report_generation"

	// JobTypeTaskNotification emails the creator and assignee about a task change
	JobTypeTaskNotification = "task_notification"
)

// MaxAttempts is how many times a job is executed before it is marked
// failed for good and the failure handler fires.
const MaxAttempts = 3

// Job represents a unit of background work to be processed
type Job interface {
	// ID returns the job's unique identifier
	ID() uuid.UUID

	// Type returns the job type identifier
	Type() string

	// Payload returns the job data as a byte slice
	Payload() []byte

	// Status returns the current job status
	Status() JobStatus

	// Execute runs the job logic
	Execute(ctx context.Context) error
}

// JobStore defines the interface for persisting jobs
type JobStore interface {
	// SaveJob persists a job to the database
	SaveJob(ctx context.Context, job Job) error

	// UpdateJobStatus updates the status of a job
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status JobStatus, errorMsg string) error

	// IncrementAttempts bumps the attempt counter for a job and returns
	// the new value.
	IncrementAttempts(ctx context.Context, jobID uuid.UUID) (int, error)

	// GetPendingJobs retrieves all jobs with "pending" status
	GetPendingJobs(ctx context.Context) ([]Job, error)

	// GetProcessingJobs retrieves jobs with "processing" status.
	// If olderThan is non-zero, only returns jobs that have been in this
	// state longer than the specified duration.
	GetProcessingJobs(ctx context.Context, olderThan time.Duration) ([]Job, error)

	// WithTx returns a new JobStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) JobStore
}

// Reconstructor turns a persisted payload back into an executable Job.
// The runner consults the registered reconstructor for a job's type when
// it loads unfinished rows at startup.
type Reconstructor func(id uuid.UUID, payload []byte) (Job, error)
