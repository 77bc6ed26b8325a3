package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/api/middleware"
	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/storage"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// MaxAttachmentSize bounds uploaded files at 10MB.
const MaxAttachmentSize = 10 << 20

// ThumbnailSize is the edge length of generated square thumbnails.
const ThumbnailSize = 150

// thumbnailQuality is the JPEG quality for generated thumbnails.
const thumbnailQuality = 80

// allowedExtensions is the upload allowlist, keyed by lowercase extension
// without the dot.
var allowedExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
	"pdf": true, "doc": true, "docx": true, "txt": true,
	"zip": true, "rar": true, "mp4": true, "mpeg": true,
}

// unsafeFilenameChars matches everything stripped from client filenames
// before they are used in storage paths.
var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// AttachmentHandler handles file uploads and downloads on tasks.
type AttachmentHandler struct {
	attachmentStore store.AttachmentStore
	taskStore       store.TaskStore
	blobStore       *storage.BlobStore
	logger          *slog.Logger

	// now is swapped out in tests to pin generated storage paths.
	now func() time.Time
}

// NewAttachmentHandler creates a new AttachmentHandler.
func NewAttachmentHandler(
	attachmentStore store.AttachmentStore,
	taskStore store.TaskStore,
	blobStore *storage.BlobStore,
	logger *slog.Logger,
) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentStore: attachmentStore,
		taskStore:       taskStore,
		blobStore:       blobStore,
		logger:          logger.With(slog.String("handler", "attachment")),
		now:             time.Now,
	}
}

// List handles GET /api/tasks/{id}/attachments.
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	_, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	attachments, err := h.attachmentStore.ListByTask(r.Context(), task.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if attachments == nil {
		attachments = []*domain.Attachment{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, AttachmentListResponse{Attachments: attachments})
}

// Upload handles POST /api/tasks/{id}/attachments. The file arrives as
// the multipart field "file". Image uploads get a square JPEG thumbnail;
// thumbnail failures are logged and do not fail the upload.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAttachmentSize+4096)
	if err := r.ParseMultipartForm(MaxAttachmentSize); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, "The file must not be greater than 10MB", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, "The file field is required", err)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > MaxAttachmentSize {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, "The file must not be greater than 10MB",
			fmt.Errorf("file size %d exceeds limit", header.Size))
		return
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(header.Filename), "."))
	if !allowedExtensions[ext] {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, "The file type is not allowed",
			fmt.Errorf("extension %q not in allowlist", ext))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxAttachmentSize+1))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusInternalServerError, "Failed to read uploaded file", err)
		return
	}
	if len(data) > MaxAttachmentSize {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, "The file must not be greater than 10MB",
			fmt.Errorf("file size exceeds limit"))
		return
	}
	if len(data) == 0 {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, "The file field is required",
			fmt.Errorf("empty upload"))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	sanitized := sanitizeFilename(header.Filename)
	stamp := h.now().Unix()
	filePath := fmt.Sprintf("attachments/%d_%s", stamp, sanitized)

	if err := h.blobStore.Put(r.Context(), filePath, bytes.NewReader(data)); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusInternalServerError, "Failed to store uploaded file", err)
		return
	}

	var thumbnailPath *string
	if strings.HasPrefix(mimeType, "image/") {
		if p, err := h.writeThumbnail(r, data, stamp, sanitized); err != nil {
			h.logger.WarnContext(r.Context(), "thumbnail generation failed",
				slog.String("task_id", task.ID.String()),
				slog.String("file", sanitized),
				slog.String("error", err.Error()))
		} else {
			thumbnailPath = &p
		}
	}

	attachment, err := domain.NewAttachment(
		task.ID, header.Filename, filePath,
		int64(len(data)), mimeType, thumbnailPath, userID,
	)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnprocessableEntity, GetSafeErrorMessage(err), err)
		return
	}

	if err := h.attachmentStore.Create(r.Context(), attachment); err != nil {
		// Best effort cleanup of the orphaned blob.
		if delErr := h.blobStore.Delete(r.Context(), filePath); delErr != nil {
			h.logger.WarnContext(r.Context(), "failed to remove orphaned blob",
				slog.String("path", filePath), slog.String("error", delErr.Error()))
		}
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, AttachmentResponse{
		Message:    "File uploaded successfully",
		Attachment: attachment,
	})
}

// Download handles GET /api/attachments/{id}/download.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	_, attachment, _, ok := h.loadAttachment(w, r)
	if !ok {
		return
	}

	blob, err := h.blobStore.Open(r.Context(), attachment.FilePath)
	if err != nil {
		status := http.StatusInternalServerError
		message := "Failed to open attachment"
		if errors.Is(err, storage.ErrBlobNotFound) {
			status = http.StatusNotFound
			message = "Attachment file not found"
		}
		shared.RespondWithErrorAndLog(w, r, h.logger, status, message, err)
		return
	}
	defer func() { _ = blob.Close() }()

	w.Header().Set("Content-Type", attachment.MimeType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, blob); err != nil {
		h.logger.WarnContext(r.Context(), "attachment stream interrupted",
			slog.String("attachment_id", attachment.ID.String()),
			slog.String("error", err.Error()))
	}
}

// Delete handles DELETE /api/attachments/{id}. The uploader and the task
// creator may delete. Blobs are removed before the row; a missing blob is
// not an error.
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, attachment, task, ok := h.loadAttachment(w, r)
	if !ok {
		return
	}

	if attachment.UploadedBy != userID && task.CreatedBy != userID {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusForbidden, "You do not have permission to perform this action", domain.ErrUnauthorized)
		return
	}

	if err := h.blobStore.Delete(r.Context(), attachment.FilePath); err != nil {
		h.logger.WarnContext(r.Context(), "failed to delete attachment blob",
			slog.String("path", attachment.FilePath), slog.String("error", err.Error()))
	}
	if attachment.ThumbnailPath != nil {
		if err := h.blobStore.Delete(r.Context(), *attachment.ThumbnailPath); err != nil {
			h.logger.WarnContext(r.Context(), "failed to delete thumbnail blob",
				slog.String("path", *attachment.ThumbnailPath), slog.String("error", err.Error()))
		}
	}

	if err := h.attachmentStore.Delete(r.Context(), attachment.ID); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{
		Message: "Attachment deleted successfully",
	})
}

// writeThumbnail decodes the image, renders a square thumbnail, and
// stores it as a JPEG. Returns the storage path of the thumbnail.
func (h *AttachmentHandler) writeThumbnail(r *http.Request, data []byte, stamp int64, sanitized string) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Thumbnail(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	thumbPath := fmt.Sprintf("thumbnails/thumb_%d_%s", stamp, sanitized)
	if err := h.blobStore.Put(r.Context(), thumbPath, &buf); err != nil {
		return "", fmt.Errorf("store thumbnail: %w", err)
	}
	return thumbPath, nil
}

// loadTask parses the task ID from the URL, loads the task, and checks
// that the caller may access it.
func (h *AttachmentHandler) loadTask(w http.ResponseWriter, r *http.Request) (uuid.UUID, *domain.Task, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return uuid.Nil, nil, false
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusBadRequest, "Invalid task ID", err)
		return uuid.Nil, nil, false
	}

	task, err := h.taskStore.GetByID(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return uuid.Nil, nil, false
	}

	if !task.CanBeModifiedBy(userID) {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusForbidden, "You do not have permission to perform this action", domain.ErrUnauthorized)
		return uuid.Nil, nil, false
	}

	return userID, task, true
}

// loadAttachment parses the attachment ID from the URL, loads the
// attachment and its task, and checks that the caller may access the task.
func (h *AttachmentHandler) loadAttachment(w http.ResponseWriter, r *http.Request) (uuid.UUID, *domain.Attachment, *domain.Task, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return uuid.Nil, nil, nil, false
	}

	attachmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusBadRequest, "Invalid attachment ID", err)
		return uuid.Nil, nil, nil, false
	}

	attachment, err := h.attachmentStore.GetByID(r.Context(), attachmentID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return uuid.Nil, nil, nil, false
	}

	task, err := h.taskStore.GetByID(r.Context(), attachment.TaskID)
	if err != nil {
		// An attachment whose task is gone is gone too.
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusNotFound, "Attachment not found", store.ErrAttachmentNotFound)
		return uuid.Nil, nil, nil, false
	}

	if !task.CanBeModifiedBy(userID) {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusForbidden, "You do not have permission to perform this action", domain.ErrUnauthorized)
		return uuid.Nil, nil, nil, false
	}

	return userID, attachment, task, true
}

// sanitizeFilename replaces characters outside [A-Za-z0-9._-] so client
// filenames are safe to embed in storage paths.
func sanitizeFilename(name string) string {
	base := path.Base(name)
	return unsafeFilenameChars.ReplaceAllString(base, "_")
}
