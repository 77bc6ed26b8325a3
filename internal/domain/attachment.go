package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Attachment validation errors.
var (
	ErrEmptyAttachmentID       = errors.New("attachment ID cannot be empty")
	ErrEmptyAttachmentTask     = errors.New("attachment task cannot be empty")
	ErrEmptyAttachmentFileName = errors.New("file name cannot be empty")
	ErrEmptyAttachmentFilePath = errors.New("file path cannot be empty")
	ErrEmptyAttachmentUploader = errors.New("attachment uploader cannot be empty")
	ErrInvalidAttachmentSize   = errors.New("file size must be positive")
)

// Attachment is a file stored against a task. FilePath and ThumbnailPath
// are storage-relative; the blob's existence is checked at read time, not
// guaranteed by the row.
type Attachment struct {
	ID            uuid.UUID `json:"id"`
	TaskID        uuid.UUID `json:"task_id"`
	FileName      string    `json:"file_name"`
	FilePath      string    `json:"file_path"`
	FileSize      int64     `json:"file_size"`
	MimeType      string    `json:"mime_type"`
	ThumbnailPath *string   `json:"thumbnail_path,omitempty"`
	UploadedBy    uuid.UUID `json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Uploader is populated by list queries for response rendering.
	Uploader *UserRef `json:"uploader,omitempty"`
}

// NewAttachment creates a new Attachment for the given task and uploader.
func NewAttachment(
	taskID uuid.UUID,
	fileName, filePath string,
	fileSize int64,
	mimeType string,
	thumbnailPath *string,
	uploadedBy uuid.UUID,
) (*Attachment, error) {
	now := time.Now().UTC()
	attachment := &Attachment{
		ID:            uuid.New(),
		TaskID:        taskID,
		FileName:      fileName,
		FilePath:      filePath,
		FileSize:      fileSize,
		MimeType:      mimeType,
		ThumbnailPath: thumbnailPath,
		UploadedBy:    uploadedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := attachment.Validate(); err != nil {
		return nil, err
	}

	return attachment, nil
}

// Validate checks if the Attachment has valid data.
func (a *Attachment) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyAttachmentID
	}
	if a.TaskID == uuid.Nil {
		return ErrEmptyAttachmentTask
	}
	if a.FileName == "" {
		return ErrEmptyAttachmentFileName
	}
	if a.FilePath == "" {
		return ErrEmptyAttachmentFilePath
	}
	if a.FileSize <= 0 {
		return ErrInvalidAttachmentSize
	}
	if a.UploadedBy == uuid.Nil {
		return ErrEmptyAttachmentUploader
	}
	return nil
}
