package models

import "time"

// ReportStatus represents the state of a report request.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusRunning  ReportStatus = "running"
	ReportStatusComplete ReportStatus = "complete"
	ReportStatusError    ReportStatus = "error"
)

// Report is a playtime report computed from one stored event table.
type Report struct {
	ID               string       `json:"id" msgpack:"id"`
	FileID           string       `json:"fileId" msgpack:"fileId"`
	Mode             string       `json:"mode" msgpack:"mode"`
	Status           ReportStatus `json:"status" msgpack:"status"`
	EventCount       int          `json:"eventCount" msgpack:"eventCount"`
	ProcessingTimeMs int64        `json:"processingTimeMs,omitempty" msgpack:"processingTimeMs"`
	CreatedAt        time.Time    `json:"createdAt" msgpack:"createdAt"`
	Rows             []ReportRow  `json:"rows,omitempty" msgpack:"rows"`
	Sessions         []Session    `json:"sessions,omitempty" msgpack:"sessions,omitempty"`
	Error            string       `json:"error,omitempty" msgpack:"error,omitempty"`
}

// NewReport creates a Report in pending status.
func NewReport(id, fileID, mode string) *Report {
	return &Report{
		ID:        id,
		FileID:    fileID,
		Mode:      mode,
		Status:    ReportStatusPending,
		CreatedAt: time.Now(),
		Rows:      make([]ReportRow, 0),
	}
}
