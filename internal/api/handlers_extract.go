// handlers_extract.go - Server-side log extraction handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/armalogs/backend/internal/extract"
)

// ExtractHandlerImpl implements the ExtractHandler interface
type ExtractHandlerImpl struct {
	extractMgr ExtractManager
	// streamInterval is how often progress is pushed over SSE.
	streamInterval time.Duration
	streamTimeout  time.Duration
}

// NewExtractHandler creates a new extract handler instance
func NewExtractHandler(extractMgr ExtractManager) ExtractHandler {
	return &ExtractHandlerImpl{
		extractMgr:     extractMgr,
		streamInterval: 250 * time.Millisecond,
		streamTimeout:  30 * time.Minute,
	}
}

// HandleStartExtract starts discovery and extraction below the given roots
func (h *ExtractHandlerImpl) HandleStartExtract(c echo.Context) error {
	var req startExtractRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if len(req.Roots) == 0 {
		return NewValidationError("roots")
	}
	for _, root := range req.Roots {
		fi, err := os.Stat(root)
		if err != nil {
			return NewBadRequestError(fmt.Sprintf("root not accessible: %s", root), err)
		}
		if !fi.IsDir() {
			return NewBadRequestError(fmt.Sprintf("root is not a directory: %s", root), nil)
		}
	}

	job := h.extractMgr.StartJob(req.Roots)

	return c.JSON(http.StatusAccepted, job)
}

// HandleGetExtract returns the current state of an extraction job
func (h *ExtractHandlerImpl) HandleGetExtract(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	job, ok := h.extractMgr.GetJob(id)
	if !ok {
		return NewNotFoundError("extraction job", id)
	}

	return c.JSON(http.StatusOK, job)
}

// HandleExtractProgressStream streams extraction progress via SSE
func (h *ExtractHandlerImpl) HandleExtractProgressStream(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	job, ok := h.extractMgr.GetJob(id)
	if !ok {
		return NewNotFoundError("extraction job", id)
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sendSSEData(c, job)
	if extract.Finished(job.Status) {
		return nil
	}

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(h.streamTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil

		case <-ticker.C:
			job, ok := h.extractMgr.GetJob(id)
			if !ok {
				sendSSEError(c, "extraction job not found")
				return nil
			}

			sendSSEData(c, job)

			// Stop streaming if complete or error
			if extract.Finished(job.Status) {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}

type startExtractRequest struct {
	Roots []string `json:"roots"`
}
