package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armalogs/backend/internal/extract"
	"github.com/armalogs/backend/internal/testutil"
)

func writeServerTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	anchor := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	testutil.WriteServerLog(t, root, "Altis", "profile", "server.log",
		"20:00:00 Mission file: co10_escape (__cur_mp)\n"+
			"20:05:00 BattlEye Server: Player #0 Miller (10.0.0.7:2304) connected\n"+
			"21:35:00 BattlEye Server: Player #0 Miller disconnected\n", anchor)
	return root
}

func TestExtract_EndToEnd(t *testing.T) {
	s := newTestServer(t)
	root := writeServerTree(t)

	rec := s.doJSON(t, http.MethodPost, "/api/extract", map[string][]string{"roots": {root}})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var job extract.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.NotEmpty(t, job.ID)

	require.Eventually(t, func() bool {
		rec := s.do(t, http.MethodGet, "/api/extract/"+job.ID, nil, "")
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.Status == extract.StatusComplete || job.Status == extract.StatusError
	}, 5*time.Second, 20*time.Millisecond)

	require.Equal(t, extract.StatusComplete, job.Status, job.Error)
	assert.Equal(t, 3, job.EventCount)
	require.NotNil(t, job.FileInfo)
	assert.Equal(t, "extracted", job.FileInfo.Status)

	rep := s.startReport(t, job.FileInfo.ID, "missions")
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "Miller", rep.Rows[0].Player)
	assert.Equal(t, "co10_escape", rep.Rows[0].Mission)
	assert.Equal(t, 90*time.Minute, rep.Rows[0].Duration)
}

func TestExtract_ProgressStream(t *testing.T) {
	s := newTestServer(t)
	job := s.extractMgr.StartJob([]string{writeServerTree(t)})

	rec := s.do(t, http.MethodGet, "/api/extract/"+job.ID+"/progress", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.NotEmpty(t, events)
	last := strings.TrimPrefix(events[len(events)-1], "data: ")

	var final extract.Job
	require.NoError(t, json.Unmarshal([]byte(last), &final))
	assert.Equal(t, extract.StatusComplete, final.Status)
}

func TestExtract_Errors(t *testing.T) {
	s := newTestServer(t)

	t.Run("no roots", func(t *testing.T) {
		rec := s.doJSON(t, http.MethodPost, "/api/extract", map[string][]string{"roots": {}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeAPIError(t, rec).Code)
	})

	t.Run("missing root", func(t *testing.T) {
		rec := s.doJSON(t, http.MethodPost, "/api/extract",
			map[string][]string{"roots": {filepath.Join(t.TempDir(), "missing")}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown job", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/extract/nope", nil, "").Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/extract/nope/progress", nil, "").Code)
	})
}
