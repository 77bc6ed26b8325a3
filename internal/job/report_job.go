package job

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/storage"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// Report job construction errors
var (
	ErrNilReportStore = errors.New("report store cannot be nil")
	ErrNilBlobStore   = errors.New("blob store cannot be nil")
	ErrNilReport      = errors.New("report cannot be nil")
)

// csvHeader is the fixed column set of a CSV export.
var csvHeader = []string{
	"ID", "Title", "Description", "Status", "Priority",
	"Due Date", "Created By", "Assigned To", "Created At", "Updated At",
}

// reportPayload is the serialized data stored for the job.
type reportPayload struct {
	ReportID   uuid.UUID            `json:"report_id"`
	UserID     uuid.UUID            `json:"user_id"`
	ReportType domain.ReportType    `json:"report_type"`
	Filters    domain.ReportFilters `json:"filters"`
}

// ReportJob implements the Job interface for rendering a filtered task
// export and storing the resulting file.
type ReportJob struct {
	id          uuid.UUID
	payload     reportPayload
	reportStore store.ReportStore
	taskStore   store.TaskStore
	blobStore   *storage.BlobStore
	logger      *slog.Logger
	status      JobStatus

	// now is swapped out in tests to pin the generated filename.
	now func() time.Time
}

// NewReportJob creates a report generation job for an already persisted
// report row in processing state.
func NewReportJob(
	report *domain.Report,
	reportStore store.ReportStore,
	taskStore store.TaskStore,
	blobStore *storage.BlobStore,
	logger *slog.Logger,
) (*ReportJob, error) {
	if report == nil {
		return nil, ErrNilReport
	}
	if reportStore == nil {
		return nil, ErrNilReportStore
	}
	if taskStore == nil {
		return nil, ErrNilTaskStore
	}
	if blobStore == nil {
		return nil, ErrNilBlobStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &ReportJob{
		id: uuid.New(),
		payload: reportPayload{
			ReportID:   report.ID,
			UserID:     report.UserID,
			ReportType: report.ReportType,
			Filters:    report.Filters,
		},
		reportStore: reportStore,
		taskStore:   taskStore,
		blobStore:   blobStore,
		logger:      logger.With("job_type", JobTypeReportGeneration, "report_id", report.ID),
		status:      JobStatusPending,
		now:         time.Now,
	}, nil
}

// NewReportJobReconstructor returns a Reconstructor that rebuilds report
// jobs from persisted payloads during recovery.
func NewReportJobReconstructor(
	reportStore store.ReportStore,
	taskStore store.TaskStore,
	blobStore *storage.BlobStore,
	logger *slog.Logger,
) Reconstructor {
	return func(id uuid.UUID, data []byte) (Job, error) {
		var payload reportPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report payload: %w", err)
		}

		return &ReportJob{
			id:          id,
			payload:     payload,
			reportStore: reportStore,
			taskStore:   taskStore,
			blobStore:   blobStore,
			logger:      logger.With("job_type", JobTypeReportGeneration, "report_id", payload.ReportID),
			status:      JobStatusPending,
			now:         time.Now,
		}, nil
	}
}

// ParseReportPayload extracts the report ID from a persisted report job
// payload. The terminal failure handler uses it to mark the report row
// failed once the retry budget is exhausted.
func ParseReportPayload(data []byte) (reportID uuid.UUID, err error) {
	var payload reportPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return uuid.Nil, fmt.Errorf("failed to unmarshal report payload: %w", err)
	}
	return payload.ReportID, nil
}

// ID returns the job's unique identifier
func (j *ReportJob) ID() uuid.UUID {
	return j.id
}

// Type returns the job type identifier
func (j *ReportJob) Type() string {
	return JobTypeReportGeneration
}

// Payload returns the job data as a byte slice
func (j *ReportJob) Payload() []byte {
	data, err := json.Marshal(j.payload)
	if err != nil {
		j.logger.Error("failed to marshal job payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current job status
func (j *ReportJob) Status() JobStatus {
	return j.status
}

// Execute renders the export and marks the report completed. Errors are
// returned so the runner's retry accounting fires; the report row is
// only marked failed by the terminal failure handler, keeping the
// processing -> completed|failed transition single-shot.
func (j *ReportJob) Execute(ctx context.Context) error {
	j.status = JobStatusProcessing
	j.logger.Info("starting report generation",
		"report_type", j.payload.ReportType,
		"user_id", j.payload.UserID)

	if err := ctx.Err(); err != nil {
		j.status = JobStatusFailed
		return fmt.Errorf("job cancelled by context: %w", err)
	}

	report, err := j.reportStore.GetByID(ctx, j.payload.ReportID)
	if err != nil {
		j.status = JobStatusFailed
		return fmt.Errorf("failed to load report row: %w", err)
	}

	// A previous attempt may have completed the row before crashing on
	// the job status update. Nothing left to do then.
	if report.Status != domain.ReportStatusProcessing {
		j.status = JobStatusCompleted
		j.logger.Info("report already finalized, skipping", "status", report.Status)
		return nil
	}

	filter, err := j.buildFilter()
	if err != nil {
		j.status = JobStatusFailed
		return err
	}

	tasks, err := j.taskStore.ListForReport(ctx, j.payload.UserID, filter)
	if err != nil {
		j.status = JobStatusFailed
		return fmt.Errorf("failed to query tasks for report: %w", err)
	}

	var content []byte
	var filePath string
	switch j.payload.ReportType {
	case domain.ReportTypeCSV:
		content, err = renderCSV(tasks)
		filePath = j.reportFilePath("csv")
	case domain.ReportTypePDF:
		// Plain-text placeholder until a real PDF renderer lands.
		content = renderText(tasks, j.now().UTC())
		filePath = j.reportFilePath("txt")
	default:
		err = fmt.Errorf("unsupported report type: %s", j.payload.ReportType)
	}
	if err != nil {
		j.status = JobStatusFailed
		return err
	}

	if err := j.blobStore.Put(ctx, filePath, bytes.NewReader(content)); err != nil {
		j.status = JobStatusFailed
		return fmt.Errorf("failed to store report file: %w", err)
	}

	if err := j.reportStore.MarkCompleted(ctx, j.payload.ReportID, filePath, path.Base(filePath)); err != nil {
		j.status = JobStatusFailed
		return fmt.Errorf("failed to mark report completed: %w", err)
	}

	j.status = JobStatusCompleted
	j.logger.Info("report generated successfully",
		"file_path", filePath,
		"task_count", len(tasks))
	return nil
}

// buildFilter parses the persisted filter snapshot into the store query
// shape. Dates are day-granular, matching the request validation.
func (j *ReportJob) buildFilter() (store.ReportTaskFilter, error) {
	filter := store.ReportTaskFilter{
		Status:   j.payload.Filters.Status,
		Priority: j.payload.Filters.Priority,
	}

	if j.payload.Filters.StartDate != "" {
		t, err := time.Parse("2006-01-02", j.payload.Filters.StartDate)
		if err != nil {
			return filter, fmt.Errorf("invalid start date %q: %w", j.payload.Filters.StartDate, err)
		}
		filter.StartDate = &t
	}
	if j.payload.Filters.EndDate != "" {
		t, err := time.Parse("2006-01-02", j.payload.Filters.EndDate)
		if err != nil {
			return filter, fmt.Errorf("invalid end date %q: %w", j.payload.Filters.EndDate, err)
		}
		filter.EndDate = &t
	}

	return filter, nil
}

func (j *ReportJob) reportFilePath(ext string) string {
	return fmt.Sprintf("reports/task_report_%s_%s.%s",
		j.payload.UserID, j.now().UTC().Format("2006-01-02_15-04-05"), ext)
}

// renderCSV writes the fixed-header CSV export.
func renderCSV(tasks []*domain.Task) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, task := range tasks {
		dueDate := ""
		if task.DueDate != nil {
			dueDate = task.DueDate.Format("2006-01-02")
		}
		createdBy := ""
		if task.Creator != nil {
			createdBy = task.Creator.Name
		}
		assignedTo := "Unassigned"
		if task.Assignee != nil {
			assignedTo = task.Assignee.Name
		}

		row := []string{
			task.ID.String(),
			task.Title,
			task.Description,
			string(task.Status),
			string(task.Priority),
			dueDate,
			createdBy,
			assignedTo,
			task.CreatedAt.Format("2006-01-02 15:04:05"),
			task.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return buf.Bytes(), nil
}

// renderText writes the plain-text export used for the pdf type.
func renderText(tasks []*domain.Task, generatedAt time.Time) []byte {
	var buf bytes.Buffer

	buf.WriteString("TASK REPORT\n")
	buf.WriteString("Generated on: " + generatedAt.Format("2006-01-02 15:04:05") + "\n")
	fmt.Fprintf(&buf, "Total tasks: %d\n\n", len(tasks))

	for _, task := range tasks {
		dueDate := "N/A"
		if task.DueDate != nil {
			dueDate = task.DueDate.Format("2006-01-02")
		}

		fmt.Fprintf(&buf, "ID: %s\n", task.ID)
		fmt.Fprintf(&buf, "Title: %s\n", task.Title)
		fmt.Fprintf(&buf, "Status: %s\n", task.Status)
		fmt.Fprintf(&buf, "Priority: %s\n", task.Priority)
		fmt.Fprintf(&buf, "Due Date: %s\n", dueDate)
		buf.WriteString("------------------------\n")
	}

	return buf.Bytes()
}
