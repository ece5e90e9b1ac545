package models

import "time"

// ReportType enumerates supported asynchronous report categories.
type ReportType string

const (
	ReportTypeAttendanceRegister ReportType = "attendance_register"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportParams scopes a report to a class and an inclusive date range.
type ReportParams struct {
	ClassID int64        `json:"classId"`
	From    string       `json:"from"`
	To      string       `json:"to"`
	Format  ReportFormat `json:"format"`
}

// ReportJob is background job metadata.
type ReportJob struct {
	ID           string       `json:"id"`
	Type         ReportType   `json:"type"`
	Params       ReportParams `json:"params"`
	Status       ReportStatus `json:"status"`
	Progress     int          `json:"progress"`
	ResultURL    *string      `json:"resultUrl,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	FinishedAt   *time.Time   `json:"finishedAt,omitempty"`
	ErrorMessage *string      `json:"error,omitempty"`
}
