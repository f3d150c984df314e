package extract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armalogs/backend/internal/models"
	"github.com/armalogs/backend/internal/testutil"
)

type memStore struct {
	mu     sync.Mutex
	saved  map[string]models.EventStore
	failOn error
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]models.EventStore)}
}

func (s *memStore) SaveEvents(name string, events models.EventStore) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil {
		return nil, s.failOn
	}
	s.saved[name] = events
	return &models.FileInfo{ID: "file-" + name, Name: name, Status: "extracted"}, nil
}

var anchor = time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)

func writeFixtures(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteServerLog(t, root, "Alpha", "profile", "server.log",
		"10:00:00 BattlEye Server: Player #1 Miller (1.1.1.1:1) connected\n"+
			"11:00:00 BattlEye Server: Player #1 Miller disconnected\n", anchor)
	testutil.WriteServerLog(t, root, "Bravo", "profile", "server.log",
		"09:00:00 Mission file: co10_escape (__cur_mp)\n", anchor)
	testutil.WriteServerLog(t, root, "Bravo", "profile", "notes.txt",
		"10:00:00 BattlEye Server: Player #1 Ghost (1.1.1.1:1) connected\n", anchor)
	return root
}

func TestRun(t *testing.T) {
	root := writeFixtures(t)

	var servers []string
	var total, lastDone int
	var mu sync.Mutex
	var files []models.FileResult

	events, results, err := Run(context.Background(), Options{
		Roots:   []string{root},
		Markers: models.DefaultMarkers(),
		Workers: 2,
	}, Hooks{
		OnServer:     func(dir string) { servers = append(servers, dir) },
		OnDiscovered: func(n int) { total = n },
		OnFileDone: func(done int) {
			mu.Lock()
			if done > lastDone {
				lastDone = done
			}
			mu.Unlock()
		},
		OnFile: func(r models.FileResult) { files = append(files, r) },
	})
	require.NoError(t, err)

	assert.Len(t, servers, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, lastDone)
	assert.Len(t, results, 2)
	assert.Len(t, files, 2)

	require.Len(t, events, 3)
	assert.Equal(t, models.EventMissionChange, events[0].Kind)
	assert.Equal(t, "Bravo", events[0].Server)
	assert.Equal(t, "Miller", events[1].Subject)
}

func TestRun_MissingRoot(t *testing.T) {
	_, _, err := Run(context.Background(), Options{Roots: []string{"/does/not/exist"}}, Hooks{})
	assert.ErrorContains(t, err, "discovering logs")
}

func TestRun_Cancelled(t *testing.T) {
	root := writeFixtures(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Run(ctx, Options{Roots: []string{root}, Markers: models.DefaultMarkers()}, Hooks{})
	assert.ErrorIs(t, err, context.Canceled)
}

func waitForJob(t *testing.T, m *Manager, id string) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		j, ok := m.GetJob(id)
		if !ok {
			return false
		}
		job = j
		return j.Status == StatusComplete || j.Status == StatusError
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestManager_StartJob(t *testing.T) {
	root := writeFixtures(t)
	store := newMemStore()
	m := NewManager(store, Options{Markers: models.DefaultMarkers()}, ".msgpack")

	started := m.StartJob([]string{root})
	assert.NotEmpty(t, started.ID)
	assert.Equal(t, StatusDiscovering, started.Status)

	job := waitForJob(t, m, started.ID)
	require.Equal(t, StatusComplete, job.Status, job.Error)
	assert.Equal(t, 100.0, job.Progress)
	assert.Equal(t, 2, job.Servers)
	assert.Equal(t, 2, job.FilesTotal)
	assert.Equal(t, 2, job.FilesDone)
	assert.Equal(t, 3, job.EventCount)
	assert.Equal(t, map[string]int{"connect": 1, "disconnect": 1, "mission": 1}, job.EventsByKind)
	assert.Equal(t, []string{"Alpha", "Bravo"}, job.ServerNames)
	assert.Equal(t, 1, job.Players)
	require.NotNil(t, job.FileInfo)
	assert.Contains(t, job.FileInfo.Name, ".msgpack")
	assert.NotNil(t, job.CompletedAt)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.saved, 1)
}

func TestManager_JobErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		m := NewManager(newMemStore(), Options{}, "")
		job := waitForJob(t, m, m.StartJob([]string{"/does/not/exist"}).ID)
		assert.Equal(t, StatusError, job.Status)
		assert.Contains(t, job.Error, "discovering logs")
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemStore()
		store.failOn = errors.New("disk full")
		m := NewManager(store, Options{Markers: models.DefaultMarkers()}, "")
		job := waitForJob(t, m, m.StartJob([]string{writeFixtures(t)}).ID)
		assert.Equal(t, StatusError, job.Status)
		assert.Contains(t, job.Error, "disk full")
	})
}

func TestManager_GetJobUnknown(t *testing.T) {
	m := NewManager(newMemStore(), Options{}, "")
	_, ok := m.GetJob("nope")
	assert.False(t, ok)
}

func TestManager_CleanupOldJobs(t *testing.T) {
	m := NewManager(newMemStore(), Options{}, "")
	old := time.Now().Add(-2 * time.Hour)
	m.jobs["done"] = &Job{ID: "done", Status: StatusComplete, CompletedAt: &old}
	m.jobs["failed"] = &Job{ID: "failed", Status: StatusError, CompletedAt: &old}
	m.jobs["running"] = &Job{ID: "running", Status: StatusExtracting}

	assert.Equal(t, 2, m.CleanupOldJobs(time.Hour))
	_, ok := m.GetJob("running")
	assert.True(t, ok)
	assert.Len(t, m.jobs, 1)
}
