// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/armalogs/backend/internal/extract"
	"github.com/armalogs/backend/internal/models"
	"github.com/armalogs/backend/internal/report"
)

// UploadHandler handles event table upload and file management
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// ReportHandler handles playtime report operations
type ReportHandler interface {
	HandleListModes(c echo.Context) error
	HandleStartReport(c echo.Context) error
	HandleGetReport(c echo.Context) error
	HandleReportCSV(c echo.Context) error
	HandleReportMsgpack(c echo.Context) error
	HandleReportKeepAlive(c echo.Context) error
}

// ExtractHandler handles server-side log extraction jobs
type ExtractHandler interface {
	HandleStartExtract(c echo.Context) error
	HandleGetExtract(c echo.Context) error
	HandleExtractProgressStream(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// ReportManager defines the interface for report management.
// This allows mocking in tests
type ReportManager interface {
	StartReport(fileID string, mode report.Mode) (*models.Report, error)
	GetReport(id string) (*models.Report, bool)
	GetResult(id string) (*report.Result, bool)
	TouchReport(id string) bool
	Wait(ctx context.Context, id string) (*models.Report, error)
	InvalidateFile(fileID string)
	Stats() map[string]interface{}
}

// ExtractManager defines the interface for extraction jobs
type ExtractManager interface {
	StartJob(roots []string) *extract.Job
	GetJob(id string) (*extract.Job, bool)
}
