package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RunnerConfig holds configuration for the job runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue
	QueueSize int

	// StuckJobAge defines how long a job can be in processing state
	// before it's considered stuck and reset
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to check for stuck jobs.
	// If zero, defaults to 5 minutes.
	StuckJobCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:           2,
		QueueSize:             100,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
	}
}

// Runner manages background job processing. Jobs are persisted before
// they are queued, so delivery is at least once: a crash between the
// insert and completion means the job is re-run after recovery.
type Runner struct {
	store          JobStore
	jobChan        chan Job
	ctx            context.Context
	cancelFunc     context.CancelFunc
	wg             sync.WaitGroup
	config         RunnerConfig
	logger         *slog.Logger
	failureHandler func(job Job, err error)

	mu             sync.RWMutex
	reconstructors map[string]Reconstructor
}

// NewRunner creates a new Runner
func NewRunner(store JobStore, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.StuckJobCheckInterval == 0 {
		config.StuckJobCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:      store,
		jobChan:    make(chan Job, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		wg:         sync.WaitGroup{},
		config:     config,
		logger:     logger,
		failureHandler: func(job Job, err error) {
			logger.Error("job permanently failed",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"error", err)
		},
		reconstructors: make(map[string]Reconstructor),
	}
}

// SetFailureHandler sets the hook invoked once a job has exhausted its
// attempts. It replaces the default log-only handler.
func (r *Runner) SetFailureHandler(handler func(job Job, err error)) {
	r.failureHandler = handler
}

// RegisterReconstructor associates a job type with a function that can
// rebuild an executable job from its persisted payload.
func (r *Runner) RegisterReconstructor(jobType string, fn Reconstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconstructors[jobType] = fn
}

// Submit persists a job and adds it to the queue
func (r *Runner) Submit(ctx context.Context, job Job) error {
	// Save job to database first
	if err := r.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	// Then add to in-memory queue
	select {
	case r.jobChan <- job:
		return nil
	default:
		return fmt.Errorf("job queue is full, try again later")
	}
}

// Start initializes the worker pool and begins processing jobs
func (r *Runner) Start() error {
	// Recover unfinished jobs from previous runs
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckJobMonitor()

	return nil
}

// Stop gracefully shuts down the job runner
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	close(r.jobChan)
}

// Recover loads any unfinished jobs from the database and requeues them.
// Jobs found in processing state were interrupted mid-run; they are
// reset to pending and run again.
func (r *Runner) Recover() error {
	ctx := context.Background()

	pendingJobs, err := r.store.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending jobs: %w", err)
	}

	processingJobs, err := r.store.GetProcessingJobs(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		"pending_count", len(pendingJobs),
		"processing_count", len(processingJobs))

	for _, j := range pendingJobs {
		r.requeue(r.rebuild(j))
	}

	for _, j := range processingJobs {
		if err := r.store.UpdateJobStatus(ctx, j.ID(), JobStatusPending, "Reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing job status",
				"job_id", j.ID(),
				"job_type", j.Type(),
				"error", err)
			continue
		}
		r.requeue(r.rebuild(j))
	}

	return nil
}

// rebuild swaps a bare recovered job for an executable one when a
// reconstructor is registered for its type.
func (r *Runner) rebuild(j Job) Job {
	r.mu.RLock()
	fn, ok := r.reconstructors[j.Type()]
	r.mu.RUnlock()
	if !ok {
		return j
	}

	rebuilt, err := fn(j.ID(), j.Payload())
	if err != nil {
		r.logger.Error("failed to reconstruct job from payload",
			"job_id", j.ID(),
			"job_type", j.Type(),
			"error", err)
		return j
	}
	return rebuilt
}

func (r *Runner) requeue(j Job) {
	select {
	case r.jobChan <- j:
	default:
		r.logger.Error("failed to requeue job, queue is full",
			"job_id", j.ID(),
			"job_type", j.Type())
	}
}

// worker processes jobs from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case j, ok := <-r.jobChan:
			if !ok {
				r.logger.Debug("job channel closed, stopping worker", "worker_id", id)
				return
			}

			r.processJob(j, id)
		}
	}
}

// processJob handles one execution attempt of a single job. A failed
// attempt requeues the job until MaxAttempts is reached, after which
// the job is marked failed and the failure handler fires exactly once.
func (r *Runner) processJob(j Job, workerID int) {
	ctx := context.Background()
	log := r.logger.With(
		"job_id", j.ID(),
		"job_type", j.Type(),
		"worker_id", workerID,
	)

	if err := r.store.UpdateJobStatus(ctx, j.ID(), JobStatusProcessing, ""); err != nil {
		log.Error("failed to update job status to processing", "error", err)
		return
	}

	attempts, err := r.store.IncrementAttempts(ctx, j.ID())
	if err != nil {
		log.Error("failed to record job attempt", "error", err)
		return
	}

	log.Info("processing job", "attempt", attempts)

	execErr := j.Execute(ctx)
	if execErr == nil {
		log.Info("job completed successfully")
		if err := r.store.UpdateJobStatus(ctx, j.ID(), JobStatusCompleted, ""); err != nil {
			log.Error("failed to update job status to completed", "error", err)
		}
		return
	}

	log.Error("job execution failed", "attempt", attempts, "error", execErr)

	if attempts < MaxAttempts {
		if err := r.store.UpdateJobStatus(ctx, j.ID(), JobStatusPending, execErr.Error()); err != nil {
			log.Error("failed to reset job status for retry", "error", err)
			return
		}
		r.requeue(j)
		return
	}

	if err := r.store.UpdateJobStatus(ctx, j.ID(), JobStatusFailed, execErr.Error()); err != nil {
		log.Error("failed to update job status to failed", "error", err)
	}

	r.failureHandler(j, execErr)
}

// stuckJobMonitor periodically checks for jobs that have been in
// processing state for too long and resets them
func (r *Runner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuckJobs, err := r.store.GetProcessingJobs(ctx, r.config.StuckJobAge)
			if err != nil {
				r.logger.Error("failed to check for stuck jobs", "error", err)
				continue
			}

			if len(stuckJobs) == 0 {
				continue
			}

			r.logger.Info("found stuck jobs", "count", len(stuckJobs))

			for _, j := range stuckJobs {
				if err := r.store.UpdateJobStatus(ctx, j.ID(), JobStatusPending,
					"Reset after being stuck in processing state"); err != nil {
					r.logger.Error("failed to reset stuck job status",
						"job_id", j.ID(),
						"job_type", j.Type(),
						"error", err)
					continue
				}

				r.requeue(r.rebuild(j))
			}
		}
	}
}
