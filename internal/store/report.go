package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
)

// ReportPage is one page of a report listing plus the total row count.
type ReportPage struct {
	Reports []*domain.Report
	Total   int
	Page    int
	PerPage int
}

// ReportStore defines the interface for report data persistence. Report
// rows transition processing -> completed|failed exactly once; the
// Mark methods enforce that the row is still processing.
type ReportStore interface {
	// Create saves a new report row in processing state.
	Create(ctx context.Context, report *domain.Report) error

	// GetByID retrieves a report by its unique ID.
	// Returns ErrReportNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error)

	// ListByUser returns the page of reports owned by userID, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, page int) (*ReportPage, error)

	// MarkCompleted transitions a processing report to completed with the
	// resulting storage path and filename.
	// Returns ErrReportNotFound if no processing row matches.
	MarkCompleted(ctx context.Context, id uuid.UUID, filePath, filename string) error

	// MarkFailed transitions a processing report to failed with the error
	// text. Returns ErrReportNotFound if no processing row matches.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error

	// Delete removes the report row. Blob cleanup is the caller's
	// responsibility.
	// Returns ErrReportNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new ReportStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) ReportStore
}
