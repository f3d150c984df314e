// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version   string
	reportMgr ReportManager
}

// NewHealthHandler creates a new health handler. reportMgr may be nil.
func NewHealthHandler(version string, reportMgr ReportManager) HealthHandler {
	return &HealthHandlerImpl{
		version:   version,
		reportMgr: reportMgr,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.reportMgr != nil {
		body["reports"] = h.reportMgr.Stats()
	}
	return c.JSON(http.StatusOK, body)
}
