package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MaxCommentLength bounds the free-text comment body.
const MaxCommentLength = 1000

// Comment validation errors.
var (
	ErrEmptyCommentID     = errors.New("comment ID cannot be empty")
	ErrEmptyCommentTask   = errors.New("comment task cannot be empty")
	ErrEmptyCommentAuthor = errors.New("comment author cannot be empty")
	ErrEmptyCommentBody   = errors.New("comment cannot be empty")
	ErrCommentTooLong     = errors.New("comment must be at most 1000 characters long")
)

// Comment is a free-text note on a task. An edited comment is detected by
// comparing CreatedAt and UpdatedAt; there is no separate flag.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	UserID    uuid.UUID `json:"user_id"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// User is populated by list queries for response rendering.
	User *UserRef `json:"user,omitempty"`
}

// NewComment creates a new Comment on the given task.
func NewComment(taskID, userID uuid.UUID, body string) (*Comment, error) {
	now := time.Now().UTC()
	comment := &Comment{
		ID:        uuid.New(),
		TaskID:    taskID,
		UserID:    userID,
		Comment:   body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := comment.Validate(); err != nil {
		return nil, err
	}

	return comment, nil
}

// Validate checks if the Comment has valid data.
func (c *Comment) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyCommentID
	}
	if c.TaskID == uuid.Nil {
		return ErrEmptyCommentTask
	}
	if c.UserID == uuid.Nil {
		return ErrEmptyCommentAuthor
	}
	if c.Comment == "" {
		return ErrEmptyCommentBody
	}
	if len(c.Comment) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// CanBeEditedBy reports whether the given user may edit the comment.
// Editing is restricted to the author.
func (c *Comment) CanBeEditedBy(userID uuid.UUID) bool {
	return c.UserID == userID
}

// CanBeDeletedBy reports whether the given user may delete the comment.
// The author may always delete; the owning task's creator may too.
func (c *Comment) CanBeDeletedBy(userID, taskCreatorID uuid.UUID) bool {
	return c.UserID == userID || taskCreatorID == userID
}
