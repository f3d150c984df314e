package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/armalogs/backend/internal/extract"
	"github.com/armalogs/backend/internal/models"
	"github.com/armalogs/backend/internal/report"
	"github.com/armalogs/backend/internal/storage"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypeExtractStart = "extract:start"
	MsgTypeReportStart  = "report:start"
	MsgTypePing         = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeAck       = "ack"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope of every WebSocket message.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ExtractStartPayload starts an extraction job.
type ExtractStartPayload struct {
	Roots []string `json:"roots"`
}

// ReportStartPayload starts a report.
type ReportStartPayload struct {
	FileID string `json:"fileId"`
	Mode   string `json:"mode"`
}

// WSErrorPayload describes a failed request.
type WSErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler runs extraction jobs and reports over a single connection,
// pushing progress until each finishes.
type WebSocketHandler struct {
	store        storage.Store
	reportMgr    ReportManager
	extractMgr   ExtractManager
	upgrader     websocket.Upgrader
	pollInterval time.Duration
	jobTimeout   time.Duration
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(store storage.Store, reportMgr ReportManager, extractMgr ExtractManager) *WebSocketHandler {
	return &WebSocketHandler{
		store:      store,
		reportMgr:  reportMgr,
		extractMgr: extractMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// CORS middleware decides which origins reach the API
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		pollInterval: 250 * time.Millisecond,
		jobTimeout:   30 * time.Minute,
	}
}

// HandleWebSocket upgrades the HTTP connection and serves requests until the
// client disconnects. Requests are handled one at a time.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Println("[WebSocket] Client connected")
	wsh.send(ws, MsgTypeConnected, "", nil)

	ctx := c.Request().Context()
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			wsh.send(ws, MsgTypePong, msg.ID, nil)
		case MsgTypeExtractStart:
			wsh.handleExtractStart(ctx, ws, msg)
		case MsgTypeReportStart:
			wsh.handleReportStart(ctx, ws, msg)
		default:
			wsh.sendError(ws, msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	fmt.Println("[WebSocket] Client disconnected")
	return nil
}

func (wsh *WebSocketHandler) handleExtractStart(ctx context.Context, ws *websocket.Conn, msg WSMessage) {
	var payload ExtractStartPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || len(payload.Roots) == 0 {
		wsh.sendError(ws, msg.ID, "Invalid extract payload", "INVALID_PAYLOAD")
		return
	}

	job := wsh.extractMgr.StartJob(payload.Roots)
	wsh.send(ws, MsgTypeAck, job.ID, job)

	ticker := time.NewTicker(wsh.pollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(wsh.jobTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout.C:
			wsh.sendError(ws, job.ID, "extraction timeout", "TIMEOUT")
			return
		case <-ticker.C:
			current, ok := wsh.extractMgr.GetJob(job.ID)
			if !ok {
				wsh.sendError(ws, job.ID, "extraction job not found", "NOT_FOUND")
				return
			}
			switch current.Status {
			case extract.StatusComplete:
				wsh.send(ws, MsgTypeComplete, job.ID, current)
				return
			case extract.StatusError:
				wsh.sendError(ws, job.ID, current.Error, "EXTRACT_FAILED")
				return
			default:
				wsh.send(ws, MsgTypeProgress, job.ID, current)
			}
		}
	}
}

func (wsh *WebSocketHandler) handleReportStart(ctx context.Context, ws *websocket.Conn, msg WSMessage) {
	var payload ReportStartPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.FileID == "" {
		wsh.sendError(ws, msg.ID, "Invalid report payload", "INVALID_PAYLOAD")
		return
	}
	if payload.Mode == "" {
		payload.Mode = string(report.ModePlaytime)
	}
	mode, err := report.ParseMode(payload.Mode)
	if err != nil {
		wsh.sendError(ws, msg.ID, err.Error(), "UNKNOWN_MODE")
		return
	}
	if _, err := wsh.store.Get(payload.FileID); err != nil {
		wsh.sendError(ws, msg.ID, "file not found: "+payload.FileID, "NOT_FOUND")
		return
	}

	rep, err := wsh.reportMgr.StartReport(payload.FileID, mode)
	if err != nil {
		wsh.sendError(ws, msg.ID, err.Error(), "REPORT_FAILED")
		return
	}
	wsh.send(ws, MsgTypeAck, rep.ID, rep)

	waitCtx, cancel := context.WithTimeout(ctx, wsh.jobTimeout)
	defer cancel()
	done, err := wsh.reportMgr.Wait(waitCtx, rep.ID)
	if err != nil {
		wsh.sendError(ws, rep.ID, err.Error(), "TIMEOUT")
		return
	}
	if done.Status == models.ReportStatusError {
		wsh.sendError(ws, rep.ID, done.Error, "REPORT_FAILED")
		return
	}
	wsh.send(ws, MsgTypeComplete, rep.ID, done)
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, msgType, id string, payload interface{}) {
	msg := WSMessage{Type: msgType, ID: id, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			fmt.Printf("[WebSocket] Failed to encode %s: %v\n", msgType, err)
			return
		}
		msg.Payload = data
	}
	if err := ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send %s: %v\n", msgType, err)
	}
}

func (wsh *WebSocketHandler) sendError(ws *websocket.Conn, id, message, code string) {
	wsh.send(ws, MsgTypeError, id, WSErrorPayload{Message: message, Code: code})
}
