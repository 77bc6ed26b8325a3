package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
)

// AttachmentStore defines the interface for attachment data persistence.
type AttachmentStore interface {
	// Create saves a new attachment row.
	// Returns ErrInvalidEntity if the task or uploader doesn't exist.
	Create(ctx context.Context, attachment *domain.Attachment) error

	// GetByID retrieves an attachment by its unique ID.
	// Returns ErrAttachmentNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error)

	// ListByTask returns all attachments for the task, oldest first, with
	// uploader projections populated.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Attachment, error)

	// Delete removes the attachment row. Blob cleanup is the caller's
	// responsibility.
	// Returns ErrAttachmentNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new AttachmentStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) AttachmentStore
}
