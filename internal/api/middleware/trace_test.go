package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
)

func TestTraceMiddlewareGeneratesID(t *testing.T) {
	t.Parallel()

	var inHandler string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inHandler = shared.GetTraceID(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	TraceMiddleware(next).ServeHTTP(w, r)

	assert.NotEmpty(t, inHandler)
	assert.Equal(t, inHandler, w.Header().Get(TraceHeader))
}

func TestTraceMiddlewarePropagatesIncomingID(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upstream-trace", shared.GetTraceID(r.Context()))
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(TraceHeader, "upstream-trace")
	w := httptest.NewRecorder()
	TraceMiddleware(next).ServeHTTP(w, r)

	assert.Equal(t, "upstream-trace", w.Header().Get(TraceHeader))
}
