package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/redact"
)

// ErrorResponse is the JSON body returned for all error statuses.
type ErrorResponse struct {
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes data as a JSON response with the given status.
// Encoding failures are logged but cannot be reported to the client since
// the header has already been written.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode JSON response",
			slog.String("error", err.Error()),
			slog.String("trace_id", GetTraceID(r.Context())))
	}
}

// RespondWithError writes a JSON error body with the given status and
// message. The message must already be safe for external exposure.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithJSON(w, r, status, ErrorResponse{
		Message: message,
		TraceID: GetTraceID(r.Context()),
	})
}

// RespondWithErrorAndLog writes a JSON error response and logs the
// underlying error. Server errors log at ERROR, client errors at DEBUG;
// the internal error is redacted before logging and never sent to the
// client.
func RespondWithErrorAndLog(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, message string, internal error) {
	ctx := r.Context()
	attrs := []any{
		slog.Int("status", status),
		slog.String("message", message),
		slog.String("trace_id", GetTraceID(ctx)),
	}
	if internal != nil {
		attrs = append(attrs, slog.String("error", redact.Error(internal)))
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.ErrorContext(ctx, "request failed", attrs...)
	case status == http.StatusTooManyRequests:
		logger.WarnContext(ctx, "request rejected", attrs...)
	default:
		logger.DebugContext(ctx, "request rejected", attrs...)
	}

	RespondWithError(w, r, status, message)
}
