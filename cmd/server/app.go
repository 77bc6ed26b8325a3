package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskboard-api/internal/config"
	"github.com/phrazzld/taskboard-api/internal/job"
	"github.com/phrazzld/taskboard-api/internal/platform/mailer"
	"github.com/phrazzld/taskboard-api/internal/platform/metrics"
	"github.com/phrazzld/taskboard-api/internal/platform/postgres"
	"github.com/phrazzld/taskboard-api/internal/platform/storage"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// application holds the shared application dependencies so wiring and
// cleanup happen in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	userStore       store.UserStore
	taskStore       store.TaskStore
	attachmentStore store.AttachmentStore
	commentStore    store.CommentStore
	reportStore     store.ReportStore

	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	blobStore        *storage.BlobStore
	mailer           mailer.Mailer

	jobRunner *job.Runner
}

// newApplication creates an application instance with all dependencies
// initialized and the job runner started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.passwordVerifier = auth.NewBcryptVerifier()

	app.userStore = postgres.NewUserStore(db, cfg.Auth.BcryptCost, logger)
	app.taskStore = postgres.NewTaskStore(db, logger)
	app.attachmentStore = postgres.NewAttachmentStore(db, logger)
	app.commentStore = postgres.NewCommentStore(db, logger)
	app.reportStore = postgres.NewReportStore(db, logger)

	app.blobStore, err = storage.NewBlobStore(cfg.Storage.Root, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	if cfg.SMTP.Host != "" {
		app.mailer = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, logger)
	} else {
		logger.Warn("no SMTP host configured, notifications will only be logged")
		app.mailer = mailer.NewLogMailer(logger)
	}

	if err := app.setupJobRunner(); err != nil {
		return nil, fmt.Errorf("failed to set up job runner: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupJobRunner creates, wires, and starts the background job runner.
func (app *application) setupJobRunner() error {
	jobStore := postgres.NewJobStore(app.db, app.logger)

	runnerConfig := job.DefaultRunnerConfig()
	if app.config.Job.WorkerCount > 0 {
		runnerConfig.WorkerCount = app.config.Job.WorkerCount
	}
	if app.config.Job.QueueSize > 0 {
		runnerConfig.QueueSize = app.config.Job.QueueSize
	}

	runner := job.NewRunner(jobStore, runnerConfig, app.logger)

	// Reconstructors rebuild persisted jobs after a restart.
	runner.RegisterReconstructor(job.JobTypeTaskNotification,
		job.NewNotificationJobReconstructor(app.mailer, app.logger))
	runner.RegisterReconstructor(job.JobTypeBulkTaskUpdate,
		job.NewBulkUpdateJobReconstructor(app.taskStore, runner, app.mailer, app.logger))
	runner.RegisterReconstructor(job.JobTypeReportGeneration,
		job.NewReportJobReconstructor(app.reportStore, app.taskStore, app.blobStore, app.logger))

	// Once the retry budget is exhausted, a report job's row is marked
	// failed so clients polling the report see a terminal state.
	runner.SetFailureHandler(func(j job.Job, jobErr error) {
		metrics.ObserveJob(j.Type(), "failed")

		if j.Type() != job.JobTypeReportGeneration {
			return
		}
		reportID, err := job.ParseReportPayload(j.Payload())
		if err != nil {
			app.logger.Error("failed to parse report payload for failure handling",
				"job_id", j.ID(), "error", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.reportStore.MarkFailed(ctx, reportID, jobErr.Error()); err != nil {
			app.logger.Error("failed to mark report as failed",
				"report_id", reportID, "error", err)
		}
	})

	if err := runner.Start(); err != nil {
		return fmt.Errorf("failed to start job runner: %w", err)
	}

	app.jobRunner = runner
	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.jobRunner != nil {
		app.jobRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
