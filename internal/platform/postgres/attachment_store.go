package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// AttachmentStore implements the store.AttachmentStore interface using a
// PostgreSQL database as the storage backend.
type AttachmentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewAttachmentStore creates a new PostgreSQL implementation of the
// AttachmentStore interface.
func NewAttachmentStore(db store.DBTX, logger *slog.Logger) *AttachmentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AttachmentStore{
		db:     db,
		logger: logger.With(slog.String("component", "attachment_store")),
	}
}

var _ store.AttachmentStore = (*AttachmentStore)(nil)

// Create implements store.AttachmentStore.Create.
func (s *AttachmentStore) Create(ctx context.Context, attachment *domain.Attachment) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := attachment.Validate(); err != nil {
		log.Warn("attachment validation failed during create",
			slog.String("error", err.Error()),
			slog.String("attachment_id", attachment.ID.String()))
		return err
	}

	query := `
		INSERT INTO task_attachments (id, task_id, file_name, file_path, file_size,
			mime_type, thumbnail_path, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		attachment.ID,
		attachment.TaskID,
		attachment.FileName,
		attachment.FilePath,
		attachment.FileSize,
		attachment.MimeType,
		attachment.ThumbnailPath,
		attachment.UploadedBy,
		attachment.CreatedAt,
		attachment.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: referenced task or user not found", store.ErrInvalidEntity)
		}
		log.Error("failed to create attachment",
			slog.String("error", err.Error()),
			slog.String("attachment_id", attachment.ID.String()))
		return MapError(err)
	}

	log.Info("attachment created",
		slog.String("attachment_id", attachment.ID.String()),
		slog.String("task_id", attachment.TaskID.String()))
	return nil
}

// GetByID implements store.AttachmentStore.GetByID.
func (s *AttachmentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	query := `
		SELECT a.id, a.task_id, a.file_name, a.file_path, a.file_size,
			a.mime_type, a.thumbnail_path, a.uploaded_by, a.created_at, a.updated_at,
			u.id, u.name, u.email
		FROM task_attachments a
		JOIN users u ON u.id = a.uploaded_by
		WHERE a.id = $1
	`
	attachment, err := s.scanAttachment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAttachmentNotFound
		}
		return nil, MapError(err)
	}
	return attachment, nil
}

// ListByTask implements store.AttachmentStore.ListByTask.
func (s *AttachmentStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Attachment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT a.id, a.task_id, a.file_name, a.file_path, a.file_size,
			a.mime_type, a.thumbnail_path, a.uploaded_by, a.created_at, a.updated_at,
			u.id, u.name, u.email
		FROM task_attachments a
		JOIN users u ON u.id = a.uploaded_by
		WHERE a.task_id = $1
		ORDER BY a.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list attachments",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var attachments []*domain.Attachment
	for rows.Next() {
		attachment, err := s.scanAttachment(rows)
		if err != nil {
			return nil, MapError(err)
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return attachments, nil
}

// Delete implements store.AttachmentStore.Delete.
func (s *AttachmentStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM task_attachments WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete attachment",
			slog.String("error", err.Error()),
			slog.String("attachment_id", id.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrAttachmentNotFound)
}

// WithTx implements store.AttachmentStore.WithTx.
func (s *AttachmentStore) WithTx(tx *sql.Tx) store.AttachmentStore {
	return &AttachmentStore{db: tx, logger: s.logger}
}

// scanAttachment reads one joined attachment row.
func (s *AttachmentStore) scanAttachment(row rowScanner) (*domain.Attachment, error) {
	var attachment domain.Attachment
	var thumbnailPath sql.NullString
	var uploader domain.UserRef

	err := row.Scan(
		&attachment.ID,
		&attachment.TaskID,
		&attachment.FileName,
		&attachment.FilePath,
		&attachment.FileSize,
		&attachment.MimeType,
		&thumbnailPath,
		&attachment.UploadedBy,
		&attachment.CreatedAt,
		&attachment.UpdatedAt,
		&uploader.ID,
		&uploader.Name,
		&uploader.Email,
	)
	if err != nil {
		return nil, err
	}

	if thumbnailPath.Valid {
		p := thumbnailPath.String
		attachment.ThumbnailPath = &p
	}
	attachment.Uploader = &uploader

	return &attachment, nil
}
