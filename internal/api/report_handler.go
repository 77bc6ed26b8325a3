package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/api/middleware"
	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/storage"
	"github.com/phrazzld/taskboard-api/internal/service/auth"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// ReportHandler handles listing, downloading, and deleting generated
// reports. Reports are private to the user who requested them.
type ReportHandler struct {
	reportStore store.ReportStore
	blobStore   *storage.BlobStore
	logger      *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(
	reportStore store.ReportStore,
	blobStore *storage.BlobStore,
	logger *slog.Logger,
) *ReportHandler {
	return &ReportHandler{
		reportStore: reportStore,
		blobStore:   blobStore,
		logger:      logger.With(slog.String("handler", "report")),
	}
}

// List handles GET /api/reports, newest first.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	result, err := h.reportStore.ListByUser(r.Context(), userID, page)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	reports := result.Reports
	if reports == nil {
		reports = []*domain.Report{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ReportListResponse{
		Data:       reports,
		Page:       result.Page,
		PerPage:    result.PerPage,
		Total:      result.Total,
		TotalPages: totalPages(result.Total, result.PerPage),
	})
}

// Show handles GET /api/reports/{id}, used to poll generation status.
func (h *ReportHandler) Show(w http.ResponseWriter, r *http.Request) {
	_, report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ReportResponse{Report: report})
}

// Download handles GET /api/reports/{id}/download. Only completed reports
// can be downloaded; a completed report whose blob is gone yields 404.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	_, report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	if report.Status != domain.ReportStatusCompleted {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusBadRequest, "Report is not ready for download",
			fmt.Errorf("report status is %s", report.Status))
		return
	}

	blob, err := h.blobStore.Open(r.Context(), report.FilePath)
	if err != nil {
		status := http.StatusInternalServerError
		message := "Failed to open report file"
		if errors.Is(err, storage.ErrBlobNotFound) {
			status = http.StatusNotFound
			message = "Report file not found"
		}
		shared.RespondWithErrorAndLog(w, r, h.logger, status, message, err)
		return
	}
	defer func() { _ = blob.Close() }()

	contentType := "text/csv"
	if report.ReportType == domain.ReportTypePDF {
		contentType = "text/plain"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", report.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, blob); err != nil {
		h.logger.WarnContext(r.Context(), "report stream interrupted",
			slog.String("report_id", report.ID.String()),
			slog.String("error", err.Error()))
	}
}

// Delete handles DELETE /api/reports/{id}. The blob is removed before
// the row; a missing blob is not an error.
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	if report.Status == domain.ReportStatusCompleted {
		if err := h.blobStore.Delete(r.Context(), report.FilePath); err != nil {
			h.logger.WarnContext(r.Context(), "failed to delete report blob",
				slog.String("path", report.FilePath),
				slog.String("error", err.Error()))
		}
	}

	if err := h.reportStore.Delete(r.Context(), report.ID); err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{
		Message: "Report deleted successfully",
	})
}

// loadReport parses the report ID from the URL, loads the report, and
// checks that it belongs to the caller. Another user's report is reported
// as not found rather than forbidden so report IDs cannot be probed.
func (h *ReportHandler) loadReport(w http.ResponseWriter, r *http.Request) (uuid.UUID, *domain.Report, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusUnauthorized, "Authentication required", auth.ErrMissingToken)
		return uuid.Nil, nil, false
	}

	reportID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusBadRequest, "Invalid report ID", err)
		return uuid.Nil, nil, false
	}

	report, err := h.reportStore.GetByID(r.Context(), reportID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return uuid.Nil, nil, false
	}

	if report.UserID != userID {
		shared.RespondWithErrorAndLog(w, r, h.logger,
			http.StatusNotFound, "Report not found", store.ErrReportNotFound)
		return uuid.Nil, nil, false
	}

	return userID, report, true
}
