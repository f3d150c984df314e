package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armalogs/backend/internal/models"
)

func TestNewScheduler_Errors(t *testing.T) {
	mgr := NewManager(newMemStore(), Options{}, "")

	_, err := NewScheduler(mgr, "@hourly", nil)
	assert.ErrorContains(t, err, "at least one root")

	_, err = NewScheduler(mgr, "every tuesday", []string{"."})
	assert.ErrorContains(t, err, "invalid extract schedule")
}

func TestScheduler_Next(t *testing.T) {
	mgr := NewManager(newMemStore(), Options{}, "")
	s, err := NewScheduler(mgr, "@hourly", []string{"."})
	require.NoError(t, err)

	next := s.Next()
	assert.True(t, next.After(time.Now()))
	assert.WithinDuration(t, time.Now(), next, time.Hour+time.Second)
}

func TestScheduler_RunNow(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, Options{Markers: models.DefaultMarkers()}, "")
	s, err := NewScheduler(mgr, "@daily", []string{writeFixtures(t)})
	require.NoError(t, err)

	first := s.RunNow()
	require.NotNil(t, first)

	require.Eventually(t, func() bool {
		job, ok := mgr.GetJob(first.ID)
		return ok && Finished(job.Status)
	}, 5*time.Second, 10*time.Millisecond)

	job, _ := mgr.GetJob(first.ID)
	assert.Equal(t, StatusComplete, job.Status, job.Error)

	second := s.RunNow()
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestScheduler_SkipsWhileRunning(t *testing.T) {
	mgr := NewManager(newMemStore(), Options{}, "")
	s, err := NewScheduler(mgr, "@daily", []string{"."})
	require.NoError(t, err)

	// a job that never finishes
	mgr.mu.Lock()
	mgr.jobs["stuck"] = &Job{ID: "stuck", Status: StatusExtracting, CreatedAt: time.Now()}
	mgr.mu.Unlock()
	s.lastJob = "stuck"

	assert.Nil(t, s.RunNow())
}

func TestFinished(t *testing.T) {
	assert.True(t, Finished(StatusComplete))
	assert.True(t, Finished(StatusError))
	assert.False(t, Finished(StatusSaving))
}
