package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/job"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// JobStore implements the job.JobStore interface using PostgreSQL.
// Rows outlive the process so the runner can recover unfinished work
// after a restart.
type JobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewJobStore creates a new PostgreSQL implementation of the JobStore
// interface.
func NewJobStore(db store.DBTX, logger *slog.Logger) *JobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

var _ job.JobStore = (*JobStore)(nil)

// SaveJob implements job.JobStore.SaveJob.
func (s *JobStore) SaveJob(ctx context.Context, j job.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO jobs (id, type, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
	`
	now := nowUTC()

	_, err := s.db.ExecContext(ctx, query,
		j.ID(),
		j.Type(),
		j.Payload(),
		j.Status(),
		now,
		now,
	)
	if err != nil {
		log.Error("failed to save job",
			slog.String("job_id", j.ID().String()),
			slog.String("job_type", j.Type()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to save job to database: %w", err)
	}

	return nil
}

// UpdateJobStatus implements job.JobStore.UpdateJobStatus. Updating a
// missing job is a no-op.
func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	jobID uuid.UUID,
	status job.JobStatus,
	errorMsg string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query, status, errorMsg, nowUTC(), jobID)
	if err != nil {
		log.Error("failed to update job status",
			slog.String("job_id", jobID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		log.Warn("no job found with ID to update status",
			slog.String("job_id", jobID.String()))
	}

	return nil
}

// IncrementAttempts implements job.JobStore.IncrementAttempts.
func (s *JobStore) IncrementAttempts(ctx context.Context, jobID uuid.UUID) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE jobs
		SET attempts = attempts + 1, updated_at = $1
		WHERE id = $2
		RETURNING attempts
	`
	var attempts int
	if err := s.db.QueryRowContext(ctx, query, nowUTC(), jobID).Scan(&attempts); err != nil {
		log.Error("failed to increment job attempts",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("failed to increment job attempts: %w", err)
	}

	return attempts, nil
}

// GetPendingJobs implements job.JobStore.GetPendingJobs.
func (s *JobStore) GetPendingJobs(ctx context.Context) ([]job.Job, error) {
	return s.getJobsByStatus(ctx, job.JobStatusPending, 0)
}

// GetProcessingJobs implements job.JobStore.GetProcessingJobs.
func (s *JobStore) GetProcessingJobs(ctx context.Context, olderThan time.Duration) ([]job.Job, error) {
	return s.getJobsByStatus(ctx, job.JobStatusProcessing, olderThan)
}

// WithTx implements job.JobStore.WithTx.
func (s *JobStore) WithTx(tx *sql.Tx) job.JobStore {
	return &JobStore{db: tx, logger: s.logger}
}

func (s *JobStore) getJobsByStatus(
	ctx context.Context,
	status job.JobStatus,
	olderThan time.Duration,
) ([]job.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, type, payload, status, error_message
		FROM jobs
		WHERE status = $1
		ORDER BY created_at ASC
	`
	args := []interface{}{status}

	if olderThan > 0 {
		query = `
			SELECT id, type, payload, status, error_message
			FROM jobs
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`
		args = append(args, nowUTC().Add(-olderThan))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs by status",
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query jobs by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []job.Job
	for rows.Next() {
		var (
			id           uuid.UUID
			jobType      string
			payload      []byte
			jobStatus    job.JobStatus
			errorMessage sql.NullString
		)
		if err := rows.Scan(&id, &jobType, &payload, &jobStatus, &errorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}

		jobs = append(jobs, &recoveredJob{
			id:      id,
			jobType: jobType,
			payload: payload,
			status:  jobStatus,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}

// recoveredJob carries a persisted job's identity and payload back to
// the runner, which swaps it for an executable job via the registered
// reconstructor for its type.
type recoveredJob struct {
	id      uuid.UUID
	jobType string
	payload []byte
	status  job.JobStatus
}

func (j *recoveredJob) ID() uuid.UUID         { return j.id }
func (j *recoveredJob) Type() string          { return j.jobType }
func (j *recoveredJob) Payload() []byte       { return j.payload }
func (j *recoveredJob) Status() job.JobStatus { return j.status }

func (j *recoveredJob) Execute(ctx context.Context) error {
	return fmt.Errorf("no reconstructor registered for job type %q", j.jobType)
}
