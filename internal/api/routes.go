// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/armalogs/backend/internal/config"
	"github.com/armalogs/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store            storage.Store
	ReportMgr        ReportManager
	ExtractMgr       ExtractManager
	RecentFilesLimit int
	Version          string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	Report    ReportHandler
	Extract   ExtractHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.ReportMgr),
		Upload:    NewUploadHandler(deps.Store, deps.ReportMgr, deps.RecentFilesLimit),
		Report:    NewReportHandler(deps.Store, deps.ReportMgr),
		Extract:   NewExtractHandler(deps.ExtractMgr),
		WebSocket: NewWebSocketHandler(deps.Store, deps.ReportMgr, deps.ExtractMgr),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Event table files
	files := apiGroup.Group("/files")
	files.POST("/upload", handlers.Upload.HandleUploadFile)
	files.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	files.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	files.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	files.GET("/:id", handlers.Upload.HandleGetFile)
	files.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	files.PUT("/:id", handlers.Upload.HandleRenameFile)

	// Extraction jobs
	extractGroup := apiGroup.Group("/extract")
	extractGroup.POST("", handlers.Extract.HandleStartExtract)
	extractGroup.GET("/:id", handlers.Extract.HandleGetExtract)
	extractGroup.GET("/:id/progress", handlers.Extract.HandleExtractProgressStream)

	// Reports
	reports := apiGroup.Group("/reports")
	reports.GET("/modes", handlers.Report.HandleListModes)
	reports.POST("", handlers.Report.HandleStartReport)
	reports.GET("/:id", handlers.Report.HandleGetReport)
	reports.GET("/:id/csv", handlers.Report.HandleReportCSV)
	reports.GET("/:id/msgpack", handlers.Report.HandleReportMsgpack)
	reports.POST("/:id/keepalive", handlers.Report.HandleReportKeepAlive)

	// WebSocket endpoint for extraction and report progress
	apiGroup.GET("/ws", handlers.WebSocket.HandleWebSocket)
}

// SetupMiddleware configures common middleware from the server settings
func SetupMiddleware(e *echo.Echo, cfg config.ServerConfig) {
	e.HTTPErrorHandler = NewErrorHandler(cfg.ShowErrorDetails)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/progress") ||
				strings.HasSuffix(path, "/keepalive") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
	}))

	if cfg.ReadTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: time.Duration(cfg.ReadTimeout) * time.Second,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.HasSuffix(path, "/progress") ||
					strings.Contains(path, "/upload") ||
					path == "/api/ws" ||
					c.QueryParam("wait") != "" ||
					c.Request().Header.Get("Accept") == "text/event-stream"
			},
			ErrorMessage: "Request timeout",
		}))
	}

	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(c echo.Context) bool {
				switch c.Request().Method {
				case http.MethodGet, http.MethodHead, http.MethodOptions:
					return true
				}
				return false
			},
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.RateBurst,
				ExpiresIn: 3 * time.Minute,
			}),
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return NewRateLimitError()
			},
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: parseOrigins(cfg.AllowOrigins),
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}

// parseOrigins splits a comma separated origin list; empty means any origin.
func parseOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
