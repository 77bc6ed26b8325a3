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

// CommentStore implements the store.CommentStore interface using a
// PostgreSQL database as the storage backend.
type CommentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewCommentStore creates a new PostgreSQL implementation of the
// CommentStore interface.
func NewCommentStore(db store.DBTX, logger *slog.Logger) *CommentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CommentStore{
		db:     db,
		logger: logger.With(slog.String("component", "comment_store")),
	}
}

var _ store.CommentStore = (*CommentStore)(nil)

// Create implements store.CommentStore.Create.
func (s *CommentStore) Create(ctx context.Context, comment *domain.Comment) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := comment.Validate(); err != nil {
		log.Warn("comment validation failed during create",
			slog.String("error", err.Error()),
			slog.String("comment_id", comment.ID.String()))
		return err
	}

	query := `
		INSERT INTO task_comments (id, task_id, user_id, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		comment.ID,
		comment.TaskID,
		comment.UserID,
		comment.Comment,
		comment.CreatedAt,
		comment.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: referenced task or user not found", store.ErrInvalidEntity)
		}
		log.Error("failed to create comment",
			slog.String("error", err.Error()),
			slog.String("comment_id", comment.ID.String()))
		return MapError(err)
	}

	return nil
}

// GetByID implements store.CommentStore.GetByID.
func (s *CommentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	query := `
		SELECT c.id, c.task_id, c.user_id, c.comment, c.created_at, c.updated_at,
			u.id, u.name, u.email
		FROM task_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1
	`
	comment, err := s.scanComment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCommentNotFound
		}
		return nil, MapError(err)
	}
	return comment, nil
}

// ListByTask implements store.CommentStore.ListByTask.
func (s *CommentStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT c.id, c.task_id, c.user_id, c.comment, c.created_at, c.updated_at,
			u.id, u.name, u.email
		FROM task_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.task_id = $1
		ORDER BY c.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to list comments",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*domain.Comment
	for rows.Next() {
		comment, err := s.scanComment(rows)
		if err != nil {
			return nil, MapError(err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return comments, nil
}

// Update implements store.CommentStore.Update.
func (s *CommentStore) Update(ctx context.Context, comment *domain.Comment) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := comment.Validate(); err != nil {
		log.Warn("comment validation failed during update",
			slog.String("error", err.Error()),
			slog.String("comment_id", comment.ID.String()))
		return err
	}

	comment.UpdatedAt = nowUTC()

	query := `
		UPDATE task_comments
		SET comment = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, comment.Comment, comment.UpdatedAt, comment.ID)
	if err != nil {
		log.Error("failed to update comment",
			slog.String("error", err.Error()),
			slog.String("comment_id", comment.ID.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrCommentNotFound)
}

// Delete implements store.CommentStore.Delete.
func (s *CommentStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM task_comments WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete comment",
			slog.String("error", err.Error()),
			slog.String("comment_id", id.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrCommentNotFound)
}

// WithTx implements store.CommentStore.WithTx.
func (s *CommentStore) WithTx(tx *sql.Tx) store.CommentStore {
	return &CommentStore{db: tx, logger: s.logger}
}

// scanComment reads one joined comment row.
func (s *CommentStore) scanComment(row rowScanner) (*domain.Comment, error) {
	var comment domain.Comment
	var user domain.UserRef

	err := row.Scan(
		&comment.ID,
		&comment.TaskID,
		&comment.UserID,
		&comment.Comment,
		&comment.CreatedAt,
		&comment.UpdatedAt,
		&user.ID,
		&user.Name,
		&user.Email,
	)
	if err != nil {
		return nil, err
	}

	comment.User = &user
	return &comment, nil
}
