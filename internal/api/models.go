// Package api implements the HTTP handlers for the task management API.
package api

import (
	"time"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// RegisterRequest is the payload for user registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the payload for user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
	Token   string       `json:"token"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User *domain.User `json:"user"`
}

// UserListResponse wraps the assignment picker listing.
type UserListResponse struct {
	Users []*domain.User `json:"users"`
}

// MessageResponse is the body for responses that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}

// CreateTaskRequest is the payload for task creation.
type CreateTaskRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description" validate:"omitempty"`
	Status      string  `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	AssignedTo  *string `json:"assigned_to" validate:"omitempty,uuid"`
}

// UpdateTaskRequest is the payload for partial task updates. Nil fields
// are left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Status      *string `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	AssignedTo  *string `json:"assigned_to" validate:"omitempty,uuid"`
}

// TaskResponse wraps a single task, with an optional action message.
type TaskResponse struct {
	Message string       `json:"message,omitempty"`
	Task    *domain.Task `json:"task"`
}

// TaskListResponse is one page of tasks.
type TaskListResponse struct {
	Data       []*domain.Task `json:"data"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// BulkUpdateRequest is the payload for the asynchronous bulk update of
// task status and/or priority.
type BulkUpdateRequest struct {
	TaskIDs  []string `json:"task_ids" validate:"required,min=1,dive,uuid"`
	Status   *string  `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Priority *string  `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// Validate requires at least one field to change.
func (r *BulkUpdateRequest) Validate() error {
	if r.Status == nil && r.Priority == nil {
		return domain.NewValidationError("status",
			"At least one of status or priority must be provided", domain.ErrValidation)
	}
	return nil
}

// GenerateReportRequest is the payload for requesting a report export.
type GenerateReportRequest struct {
	ReportType string `json:"report_type" validate:"omitempty,oneof=csv pdf"`
	Status     string `json:"status" validate:"omitempty,oneof=all pending in_progress completed"`
	Priority   string `json:"priority" validate:"omitempty,oneof=all low medium high"`
	StartDate  string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// Validate rejects a date window whose end precedes its start. Tag
// validation has already confirmed both dates parse.
func (r GenerateReportRequest) Validate() error {
	if r.StartDate == "" || r.EndDate == "" {
		return nil
	}
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return nil
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return nil
	}
	if end.Before(start) {
		return domain.NewValidationError("end_date",
			"The end_date field must be a date after or equal to start_date", domain.ErrValidation)
	}
	return nil
}

// ReportAcceptedResponse acknowledges a queued report generation.
type ReportAcceptedResponse struct {
	Message  string         `json:"message"`
	ReportID string         `json:"report_id"`
	Report   *domain.Report `json:"report"`
}

// ReportResponse wraps a single report.
type ReportResponse struct {
	Report *domain.Report `json:"report"`
}

// ReportListResponse is one page of reports.
type ReportListResponse struct {
	Data       []*domain.Report `json:"data"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
}

// AttachmentResponse wraps a single attachment, with an optional action
// message.
type AttachmentResponse struct {
	Message    string             `json:"message,omitempty"`
	Attachment *domain.Attachment `json:"attachment"`
}

// AttachmentListResponse wraps a task's attachments.
type AttachmentListResponse struct {
	Attachments []*domain.Attachment `json:"attachments"`
}

// CreateCommentRequest is the payload for adding a comment to a task.
type CreateCommentRequest struct {
	Comment string `json:"comment" validate:"required,max=1000"`
}

// UpdateCommentRequest is the payload for editing a comment.
type UpdateCommentRequest struct {
	Comment string `json:"comment" validate:"required,max=1000"`
}

// CommentResponse wraps a single comment, with an optional action message.
type CommentResponse struct {
	Message string          `json:"message,omitempty"`
	Comment *domain.Comment `json:"comment"`
}

// CommentListResponse wraps a task's comments.
type CommentListResponse struct {
	Comments []*domain.Comment `json:"comments"`
}

// totalPages computes the page count for a listing.
func totalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
