package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReportType selects the export format.
type ReportType string

// Valid report types. Note that the pdf type currently renders a plain-text
// placeholder, not a real PDF.
const (
	ReportTypeCSV ReportType = "csv"
	ReportTypePDF ReportType = "pdf"
)

// ReportStatus is the lifecycle state of a report. A report is created in
// processing state and transitions exactly once to completed or failed,
// never backward.
type ReportStatus string

// Valid report statuses.
const (
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

// Report validation errors.
var (
	ErrEmptyReportID   = errors.New("report ID cannot be empty")
	ErrEmptyReportUser = errors.New("report user cannot be empty")
)

// ReportFilters is the filter snapshot captured when a report is requested.
// It is persisted as opaque JSON on the report row and replayed by the
// generation job; it is never re-derived from a live request.
type ReportFilters struct {
	Status    string `json:"status,omitempty"`
	Priority  string `json:"priority,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Report is an asynchronously generated export of a filtered task set.
type Report struct {
	ID           uuid.UUID     `json:"id"`
	UserID       uuid.UUID     `json:"user_id"`
	Filename     string        `json:"filename"`
	FilePath     string        `json:"file_path"`
	ReportType   ReportType    `json:"report_type"`
	Filters      ReportFilters `json:"filters"`
	Status       ReportStatus  `json:"status"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewReport creates a Report in processing state. Filename and FilePath
// hold a placeholder until the generation job writes the result.
func NewReport(userID uuid.UUID, reportType ReportType, filters ReportFilters) (*Report, error) {
	if reportType == "" {
		reportType = ReportTypeCSV
	}

	now := time.Now().UTC()
	report := &Report{
		ID:         uuid.New(),
		UserID:     userID,
		Filename:   "processing",
		FilePath:   "processing",
		ReportType: reportType,
		Filters:    filters,
		Status:     ReportStatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := report.Validate(); err != nil {
		return nil, err
	}

	return report, nil
}

// Validate checks if the Report has valid data.
func (r *Report) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyReportID
	}
	if r.UserID == uuid.Nil {
		return ErrEmptyReportUser
	}
	if !r.ReportType.IsValid() {
		return ErrInvalidReportType
	}
	if !r.Status.IsValid() {
		return ErrInvalidReportStatus
	}
	return nil
}

// IsValid reports whether the report type is one of the allowed values.
func (t ReportType) IsValid() bool {
	return t == ReportTypeCSV || t == ReportTypePDF
}

// IsValid reports whether the report status is one of the allowed values.
func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportStatusProcessing, ReportStatusCompleted, ReportStatusFailed:
		return true
	}
	return false
}
