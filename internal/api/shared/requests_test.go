package shared

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type guardedRequest struct {
	Count int `json:"count"`
}

var errCountTooHigh = errors.New("count too high")

func (r guardedRequest) Validate() error {
	if r.Count > 10 {
		return errCountTooHigh
	}
	return nil
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com"}`))
	var req sampleRequest
	require.NoError(t, DecodeJSON(r, &req))
	assert.Equal(t, "a@b.com", req.Email)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","extra":1}`))
	var req sampleRequest
	assert.Error(t, DecodeJSON(r, &req))
}

func TestDecodeJSONMalformed(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`))
	var req sampleRequest
	assert.Error(t, DecodeJSON(r, &req))
}

func TestValidateRequestStructTags(t *testing.T) {
	t.Parallel()

	assert.Error(t, ValidateRequest(sampleRequest{}))
	assert.Error(t, ValidateRequest(sampleRequest{Email: "nope"}))
	assert.NoError(t, ValidateRequest(sampleRequest{Email: "a@b.com"}))
}

func TestValidateRequestCustomValidation(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateRequest(guardedRequest{Count: 5}))
	assert.ErrorIs(t, ValidateRequest(guardedRequest{Count: 11}), errCountTooHigh)
}
