package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
)

// CommentStore defines the interface for comment data persistence.
type CommentStore interface {
	// Create saves a new comment.
	// Returns ErrInvalidEntity if the task or author doesn't exist.
	Create(ctx context.Context, comment *domain.Comment) error

	// GetByID retrieves a comment by its unique ID.
	// Returns ErrCommentNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error)

	// ListByTask returns all comments for the task, newest first, with
	// author projections populated.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error)

	// Update persists an edited comment body, refreshing UpdatedAt.
	// Returns ErrCommentNotFound if the comment does not exist.
	Update(ctx context.Context, comment *domain.Comment) error

	// Delete removes the comment.
	// Returns ErrCommentNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new CommentStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) CommentStore
}
