package parser

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armalogs/backend/internal/models"
	"github.com/armalogs/backend/internal/testutil"
)

// stubExtractor returns canned events per path.
type stubExtractor struct {
	events map[string]models.EventStore
	fail   map[string]error
	calls  atomic.Int32
}

func (s *stubExtractor) Name() string { return "stub" }

func (s *stubExtractor) Parse(_ io.Reader, _ string, _ time.Time) (models.EventStore, error) {
	return nil, nil
}

func (s *stubExtractor) ParseFile(_ context.Context, file models.LogFile) (models.EventStore, error) {
	s.calls.Add(1)
	if err := s.fail[file.Path]; err != nil {
		return s.events[file.Path], err
	}
	return s.events[file.Path], nil
}

func TestExtractAll(t *testing.T) {
	ex := &stubExtractor{
		events: map[string]models.EventStore{
			"/logs/Server1/profile/a.log": {
				testutil.Connect(t, "Miller", "Server1", "10:00:00"),
				testutil.Disconnect(t, "Miller", "Server1", "11:00:00"),
			},
			"/logs/Server2/profile/b.log": {
				testutil.Connect(t, "Kerry", "Server2", "09:00:00"),
			},
			"/logs/Server3/profile/c.log": {
				testutil.Connect(t, "Partial", "Server3", "08:00:00"),
			},
		},
		fail: map[string]error{
			"/logs/Server3/profile/c.log": errors.New("permission denied"),
		},
	}
	files := []models.LogFile{
		{Path: "/logs/Server1/profile/a.log"},
		{Path: "/logs/Server2/profile/b.log"},
		{Path: "/logs/Server3/profile/c.log"},
	}

	var reported []string
	config := ExtractConfig{
		Workers: 2,
		OnFile: func(r models.FileResult) {
			reported = append(reported, r.Server)
		},
	}

	store, results, err := ExtractAll(context.Background(), ex, files, config)
	require.NoError(t, err)

	assert.Equal(t, int32(3), ex.calls.Load())
	assert.Equal(t, []string{"Server1", "Server2", "Server3"}, reported)
	require.Len(t, results, 3)
	assert.Error(t, results[2].Err)

	// failed file is dropped, the rest sorted by time
	require.Len(t, store, 3)
	assert.Equal(t, "Kerry", store[0].Subject)
	assert.Equal(t, "Miller", store[1].Subject)
	assert.Equal(t, models.EventDisconnect, store[2].Kind)
}

func TestExtractAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := &stubExtractor{}
	_, _, err := ExtractAll(ctx, ex, []models.LogFile{{Path: "a.log"}}, DefaultExtractConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractAll_Empty(t *testing.T) {
	store, results, err := ExtractAll(context.Background(), &stubExtractor{}, nil, ExtractConfig{})
	require.NoError(t, err)
	assert.Empty(t, store)
	assert.Empty(t, results)
}

func TestMergeResults_StableForEqualTimes(t *testing.T) {
	results := []models.FileResult{
		{Events: models.EventStore{testutil.Connect(t, "First", "Server1", "10:00:00")}},
		{Events: models.EventStore{testutil.Connect(t, "Second", "Server2", "10:00:00")}},
	}

	merged := MergeResults(results)
	require.Len(t, merged, 2)
	assert.Equal(t, "First", merged[0].Subject)
	assert.Equal(t, "Second", merged[1].Subject)
}
