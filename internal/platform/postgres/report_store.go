package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// ReportStore implements the store.ReportStore interface using a
// PostgreSQL database as the storage backend. The filter snapshot is
// stored as JSONB.
type ReportStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewReportStore creates a new PostgreSQL implementation of the
// ReportStore interface.
func NewReportStore(db store.DBTX, logger *slog.Logger) *ReportStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ReportStore{
		db:     db,
		logger: logger.With(slog.String("component", "report_store")),
	}
}

var _ store.ReportStore = (*ReportStore)(nil)

// Create implements store.ReportStore.Create.
func (s *ReportStore) Create(ctx context.Context, report *domain.Report) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := report.Validate(); err != nil {
		log.Warn("report validation failed during create",
			slog.String("error", err.Error()),
			slog.String("report_id", report.ID.String()))
		return err
	}

	filters, err := json.Marshal(report.Filters)
	if err != nil {
		return fmt.Errorf("failed to marshal report filters: %w", err)
	}

	query := `
		INSERT INTO reports (id, user_id, filename, file_path, report_type,
			filters, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		report.ID,
		report.UserID,
		report.Filename,
		report.FilePath,
		report.ReportType,
		filters,
		report.Status,
		report.ErrorMessage,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: referenced user not found", store.ErrInvalidEntity)
		}
		log.Error("failed to create report",
			slog.String("error", err.Error()),
			slog.String("report_id", report.ID.String()))
		return MapError(err)
	}

	log.Info("report created",
		slog.String("report_id", report.ID.String()),
		slog.String("report_type", string(report.ReportType)))
	return nil
}

// GetByID implements store.ReportStore.GetByID.
func (s *ReportStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	query := `
		SELECT id, user_id, filename, file_path, report_type, filters,
			status, error_message, created_at, updated_at
		FROM reports
		WHERE id = $1
	`
	report, err := s.scanReport(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReportNotFound
		}
		return nil, MapError(err)
	}
	return report, nil
}

// ListByUser implements store.ReportStore.ListByUser.
func (s *ReportStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	page int,
) (*store.ReportPage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var total int
	countQuery := `SELECT COUNT(*) FROM reports WHERE user_id = $1`
	if err := s.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		log.Error("failed to count reports", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if page < 1 {
		page = 1
	}

	query := `
		SELECT id, user_id, filename, file_path, report_type, filters,
			status, error_message, created_at, updated_at
		FROM reports
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID,
		store.TaskPageSize, (page-1)*store.TaskPageSize)
	if err != nil {
		log.Error("failed to list reports", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var reports []*domain.Report
	for rows.Next() {
		report, err := s.scanReport(rows)
		if err != nil {
			return nil, MapError(err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return &store.ReportPage{
		Reports: reports,
		Total:   total,
		Page:    page,
		PerPage: store.TaskPageSize,
	}, nil
}

// MarkCompleted implements store.ReportStore.MarkCompleted. The status
// predicate ensures a failed or completed report never transitions again.
func (s *ReportStore) MarkCompleted(ctx context.Context, id uuid.UUID, filePath, filename string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE reports
		SET status = $1, file_path = $2, filename = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	result, err := s.db.ExecContext(ctx, query,
		domain.ReportStatusCompleted, filePath, filename, nowUTC(),
		id, domain.ReportStatusProcessing)
	if err != nil {
		log.Error("failed to mark report completed",
			slog.String("error", err.Error()),
			slog.String("report_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrReportNotFound); err != nil {
		return err
	}

	log.Info("report completed",
		slog.String("report_id", id.String()),
		slog.String("file_path", filePath))
	return nil
}

// MarkFailed implements store.ReportStore.MarkFailed.
func (s *ReportStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE reports
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := s.db.ExecContext(ctx, query,
		domain.ReportStatusFailed, errorMessage, nowUTC(),
		id, domain.ReportStatusProcessing)
	if err != nil {
		log.Error("failed to mark report failed",
			slog.String("error", err.Error()),
			slog.String("report_id", id.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrReportNotFound)
}

// Delete implements store.ReportStore.Delete.
func (s *ReportStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete report",
			slog.String("error", err.Error()),
			slog.String("report_id", id.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrReportNotFound)
}

// WithTx implements store.ReportStore.WithTx.
func (s *ReportStore) WithTx(tx *sql.Tx) store.ReportStore {
	return &ReportStore{db: tx, logger: s.logger}
}

// scanReport reads one report row, unmarshalling the filter snapshot.
func (s *ReportStore) scanReport(row rowScanner) (*domain.Report, error) {
	var report domain.Report
	var filters []byte
	var errorMessage sql.NullString

	err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.Filename,
		&report.FilePath,
		&report.ReportType,
		&filters,
		&report.Status,
		&errorMessage,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &report.Filters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report filters: %w", err)
		}
	}
	if errorMessage.Valid {
		m := errorMessage.String
		report.ErrorMessage = &m
	}

	return &report, nil
}
