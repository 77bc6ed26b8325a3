package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/taskboard-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user to the store. It hashes the plaintext
	// password internally before storage.
	// Returns ErrEmailExists if the email is already taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ListOthers returns every user except the one identified by excludeID,
	// ordered by name. Used to populate the assignment picker.
	ListOthers(ctx context.Context, excludeID uuid.UUID) ([]*domain.User, error)

	// WithTx returns a new UserStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) UserStore
}
