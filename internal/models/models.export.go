// FilePath: internal/models/models.export.go
package models

import (
	"fmt"
	"time"
)

type ExportStatus string

const (
	ExportPending    ExportStatus = "pending"
	ExportProcessing ExportStatus = "processing"
	ExportCompleted  ExportStatus = "completed"
	ExportFailed     ExportStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s ExportStatus) IsTerminal() bool {
	return s == ExportCompleted || s == ExportFailed
}

// ExportJob is one asynchronous report generation tracked by the backend.
type ExportJob struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Status      ExportStatus `json:"status"`
	Filename    string       `json:"filename"`
	Downloaded  bool         `json:"downloaded"`
	DownloadURL string       `json:"downloadUrl"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt"`
	Error       *string      `json:"error"`
}

// ErrorMessage returns the job's error or fallback when none was reported.
func (j *ExportJob) ErrorMessage(fallback string) string {
	if j.Error != nil && *j.Error != "" {
		return *j.Error
	}
	return fallback
}

// DownloadFilename names the CSV after the job's creation time.
func (j *ExportJob) DownloadFilename(loc *time.Location) string {
	created := j.CreatedAt
	if loc != nil {
		created = created.In(loc)
	}
	return fmt.Sprintf("sensor_report_%s.csv", created.Format("2006-01-02_15-04"))
}

// ExportRequest is the body POSTed to /sensors/export.
type ExportRequest struct {
	SensorReportFilter
	UserID string `json:"userId"`
}

// GenerateReportResponse is the backend answer to an export request.
type GenerateReportResponse struct {
	Message string `json:"message"`
	Success *bool  `json:"success,omitempty"`
	JobID   string `json:"jobId,omitempty"`
}
