package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes.
// Errors that do not match any known category map to 500.
func MapErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrEmailExists):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, domain.ErrInvalidTaskPriority),
		errors.Is(err, domain.ErrInvalidReportType),
		errors.Is(err, domain.ErrInvalidReportStatus):
		return http.StatusUnprocessableEntity

	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for the error.
// Internal details never reach the response body; 500s get a generic
// message regardless of the underlying error text.
func GetSafeErrorMessage(err error) string {
	status := MapErrorToStatusCode(err)

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Authentication token has expired"
	case status == http.StatusUnauthorized:
		return "Authentication required"
	case errors.Is(err, domain.ErrUnauthorized):
		return "You do not have permission to perform this action"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrAttachmentNotFound):
		return "Attachment not found"
	case errors.Is(err, store.ErrCommentNotFound):
		return "Comment not found"
	case errors.Is(err, store.ErrReportNotFound):
		return "Report not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"
	case errors.Is(err, store.ErrEmailExists):
		return "The email has already been taken"
	case status == http.StatusUnprocessableEntity:
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return verr.Message
		}
		return err.Error()
	case status == http.StatusBadRequest:
		return "Invalid request"
	default:
		return "An internal error occurred"
	}
}

// SanitizeValidationError converts validator.ValidationErrors into a
// client-facing message naming the first failing field. Non-validator
// errors fall back to GetSafeErrorMessage.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return GetSafeErrorMessage(err)
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return "The " + field + " field is required"
	case "email":
		return "The " + field + " field must be a valid email address"
	case "min":
		return "The " + field + " field must be at least " + fe.Param() + " characters"
	case "max":
		return "The " + field + " field must not exceed " + fe.Param() + " characters"
	case "oneof":
		return "The " + field + " field must be one of: " + fe.Param()
	case "uuid":
		return "The " + field + " field must be a valid UUID"
	default:
		return "The " + field + " field is invalid"
	}
}
