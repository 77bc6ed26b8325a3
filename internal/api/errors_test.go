package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"forbidden", domain.ErrUnauthorized, http.StatusForbidden},
		{"task not found", store.ErrTaskNotFound, http.StatusNotFound},
		{"report not found", store.ErrReportNotFound, http.StatusNotFound},
		{"email exists", store.ErrEmailExists, http.StatusConflict},
		{"domain validation", domain.ErrValidation, http.StatusUnprocessableEntity},
		{"invalid status", domain.ErrInvalidTaskStatus, http.StatusUnprocessableEntity},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessageHidesInternals(t *testing.T) {
	t.Parallel()

	internal := errors.New("pq: connection refused to 10.0.0.5:5432")
	got := GetSafeErrorMessage(internal)
	assert.Equal(t, "An internal error occurred", got)
	assert.NotContains(t, got, "10.0.0.5")
}

func TestGetSafeErrorMessageKnownErrors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Task not found", GetSafeErrorMessage(store.ErrTaskNotFound))
	assert.Equal(t, "The email has already been taken", GetSafeErrorMessage(store.ErrEmailExists))
	assert.Equal(t, "Invalid email or password", GetSafeErrorMessage(auth.ErrInvalidCredentials))
	assert.Equal(t,
		"You do not have permission to perform this action",
		GetSafeErrorMessage(domain.ErrUnauthorized))
}

func TestGetSafeErrorMessageValidationError(t *testing.T) {
	t.Parallel()

	err := domain.NewValidationError("title", "Title cannot be empty", domain.ErrValidation)
	assert.Equal(t, "Title cannot be empty", GetSafeErrorMessage(err))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	validate := validator.New()

	type req struct {
		Email string `validate:"required,email"`
	}

	err := validate.Struct(req{})
	assert.Equal(t, "The email field is required", SanitizeValidationError(err))

	err = validate.Struct(req{Email: "nope"})
	assert.Equal(t, "The email field must be a valid email address", SanitizeValidationError(err))
}

func TestSanitizeValidationErrorFallsBack(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Task not found", SanitizeValidationError(store.ErrTaskNotFound))
}
