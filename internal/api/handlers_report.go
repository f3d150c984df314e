// handlers_report.go - Playtime report handlers
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/armalogs/backend/internal/models"
	"github.com/armalogs/backend/internal/report"
	"github.com/armalogs/backend/internal/storage"
)

// maxReportWait bounds ?wait=true on report status requests.
const maxReportWait = 30 * time.Second

// ReportHandlerImpl implements the ReportHandler interface
type ReportHandlerImpl struct {
	store     storage.Store
	reportMgr ReportManager
}

// NewReportHandler creates a new report handler instance
func NewReportHandler(store storage.Store, reportMgr ReportManager) ReportHandler {
	return &ReportHandlerImpl{
		store:     store,
		reportMgr: reportMgr,
	}
}

// HandleListModes returns the available report modes and their columns
func (h *ReportHandlerImpl) HandleListModes(c echo.Context) error {
	modes := make([]modeInfo, 0, len(report.Modes()))
	for _, m := range report.Modes() {
		modes = append(modes, modeInfo{Name: string(m), Columns: report.Header(m)})
	}
	return c.JSON(http.StatusOK, modes)
}

// HandleStartReport starts computing a report for a stored event table
func (h *ReportHandlerImpl) HandleStartReport(c echo.Context) error {
	var req startReportRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.FileID == "" {
		return NewValidationError("fileId")
	}
	if req.Mode == "" {
		req.Mode = string(report.ModePlaytime)
	}
	mode, err := report.ParseMode(req.Mode)
	if err != nil {
		return FromError("invalid report mode", err)
	}

	if _, err := h.store.Get(req.FileID); err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	rep, err := h.reportMgr.StartReport(req.FileID, mode)
	if err != nil {
		return FromError("failed to start report", err)
	}

	return c.JSON(http.StatusAccepted, rep)
}

// HandleGetReport returns report status and rows. With ?wait=true the request
// blocks until the report is finished.
func (h *ReportHandlerImpl) HandleGetReport(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	rep, ok := h.reportMgr.GetReport(id)
	if !ok {
		return NewNotFoundError("report", id)
	}

	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); wait && !reportFinished(rep) {
		ctx, cancel := context.WithTimeout(c.Request().Context(), maxReportWait)
		defer cancel()

		waited, err := h.reportMgr.Wait(ctx, id)
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			// fall through with the running state
		case err != nil:
			return NewNotFoundError("report", id)
		default:
			rep = waited
		}
	}

	// Touch report to prevent cleanup while being viewed
	h.reportMgr.TouchReport(id)

	return c.JSON(http.StatusOK, rep)
}

// HandleReportCSV downloads a finished report as CSV
func (h *ReportHandlerImpl) HandleReportCSV(c echo.Context) error {
	id, result, err := h.finishedResult(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, result); err != nil {
		return NewInternalError("failed to render report", err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s-%s.csv"`, result.Mode, shortID(id)))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// HandleReportMsgpack returns a finished report in MessagePack format
func (h *ReportHandlerImpl) HandleReportMsgpack(c echo.Context) error {
	id, _, err := h.finishedResult(c)
	if err != nil {
		return err
	}

	rep, ok := h.reportMgr.GetReport(id)
	if !ok {
		return NewNotFoundError("report", id)
	}

	data, err := msgpack.Marshal(rep)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleReportKeepAlive extends report lifetime for active viewing
func (h *ReportHandlerImpl) HandleReportKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if ok := h.reportMgr.TouchReport(id); !ok {
		return NewNotFoundError("report", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// finishedResult resolves the :id param to a completed report result.
func (h *ReportHandlerImpl) finishedResult(c echo.Context) (string, *report.Result, error) {
	id := c.Param("id")
	if id == "" {
		return "", nil, NewValidationError("id")
	}

	rep, ok := h.reportMgr.GetReport(id)
	if !ok {
		return "", nil, NewNotFoundError("report", id)
	}
	switch rep.Status {
	case models.ReportStatusComplete:
	case models.ReportStatusError:
		return "", nil, NewConflictError(fmt.Sprintf("report failed: %s", rep.Error))
	default:
		return "", nil, NewConflictError("report is not finished yet")
	}

	result, ok := h.reportMgr.GetResult(id)
	if !ok {
		return "", nil, NewNotFoundError("report", id)
	}
	h.reportMgr.TouchReport(id)

	return id, result, nil
}

func reportFinished(rep *models.Report) bool {
	return rep.Status == models.ReportStatusComplete || rep.Status == models.ReportStatusError
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Request/Response types

type startReportRequest struct {
	FileID string `json:"fileId"`
	Mode   string `json:"mode"`
}

type modeInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}
