package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. Entity-specific variants wrap it so callers can match either.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a user with the same email).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or violates a database constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors.

	ErrUserNotFound       = fmt.Errorf("%w: user", ErrNotFound)
	ErrTaskNotFound       = fmt.Errorf("%w: task", ErrNotFound)
	ErrAttachmentNotFound = fmt.Errorf("%w: attachment", ErrNotFound)
	ErrCommentNotFound    = fmt.Errorf("%w: comment", ErrNotFound)
	ErrReportNotFound     = fmt.Errorf("%w: report", ErrNotFound)

	// ErrEmailExists indicates that a user with the given email already
	// exists.
	ErrEmailExists = fmt.Errorf("%w: email", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
