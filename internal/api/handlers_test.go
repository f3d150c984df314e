package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armalogs/backend/internal/config"
	"github.com/armalogs/backend/internal/extract"
	"github.com/armalogs/backend/internal/models"
	"github.com/armalogs/backend/internal/session"
	"github.com/armalogs/backend/internal/storage"
	"github.com/armalogs/backend/internal/testutil"
)

type testServer struct {
	e          *echo.Echo
	store      *storage.LocalStore
	reportMgr  *session.Manager
	extractMgr *extract.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	reportMgr := session.NewManager(store)
	extractMgr := extract.NewManager(store, extract.Options{Markers: models.DefaultMarkers()}, ".csv")

	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(true)
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Store:      store,
		ReportMgr:  reportMgr,
		ExtractMgr: extractMgr,
		Version:    "test",
	}))

	return &testServer{e: e, store: store, reportMgr: reportMgr, extractMgr: extractMgr}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return s.do(t, method, path, bytes.NewReader(data), echo.MIMEApplicationJSON)
}

// multipartBody builds a form with a "file" part plus extra fields.
func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func sampleCSV(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, storage.WriteCSV(&buf, testutil.SampleStore(t)))
	return buf.Bytes()
}

// uploadSample stores the sample event table and returns its file info.
func (s *testServer) uploadSample(t *testing.T) models.FileInfo {
	t.Helper()
	body, ct := multipartBody(t, "connects.csv", sampleCSV(t), nil)
	rec := s.do(t, http.MethodPost, "/api/files/upload", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	return info
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr), rec.Body.String())
	return apiErr
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
	assert.Contains(t, rec.Body.String(), `"reports"`)
}

func TestSetupMiddleware(t *testing.T) {
	e := echo.New()
	cfg := config.DefaultConfig().Server
	cfg.EnableRequestLogging = false
	SetupMiddleware(e, cfg)
	RegisterRoutes(e, NewHandlers(&Dependencies{Version: "mw"}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(echo.HeaderOrigin, "http://example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"HTTP_ERROR"`)
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, parseOrigins(""))
	assert.Equal(t, []string{"http://a", "http://b"}, parseOrigins(" http://a , http://b ,"))
}

func TestSetupMiddleware_RateLimit(t *testing.T) {
	e := echo.New()
	cfg := config.DefaultConfig().Server
	cfg.EnableRequestLogging = false
	cfg.RateLimit = 1
	cfg.RateBurst = 2
	SetupMiddleware(e, cfg)
	RegisterRoutes(e, NewHandlers(&Dependencies{Version: "mw"}))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/unknown", nil)
		req.RemoteAddr = "10.0.0.9:5000"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNotFound, post().Code)
	assert.Equal(t, http.StatusNotFound, post().Code)

	rec := post()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"RATE_LIMITED"`)

	// reads are never limited
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
