package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armalogs/backend/internal/models"
	"github.com/armalogs/backend/internal/testutil"
)

func aggregate(t *testing.T, g Grouping, events models.EventStore) []models.PlayerAggregate {
	t.Helper()
	return NewAggregator(g).Aggregate(events)
}

func TestAggregate_Pairing(t *testing.T) {
	events := models.EventStore{
		testutil.Connect(t, "A", "S", "10:00:00"),
		testutil.Disconnect(t, "A", "S", "10:30:00"),
	}

	aggs := aggregate(t, ByPlayer, events)
	require.Len(t, aggs, 1)
	assert.Equal(t, models.GroupKey{Player: "A"}, aggs[0].Key)
	assert.Equal(t, 30*time.Minute, aggs[0].TotalDuration)
	assert.Equal(t, 1, aggs[0].SessionCount)
	assert.Equal(t, 0, aggs[0].ErrorCount)
	assert.Equal(t, "S", aggs[0].LastServer)
	assert.Equal(t, "00:30", FormatDuration(aggs[0].TotalDuration))
}

func TestAggregate_DoubleConnect(t *testing.T) {
	events := models.EventStore{
		testutil.Connect(t, "A", "S", "09:00:00"),
		testutil.Connect(t, "A", "S", "09:05:00"),
		testutil.Disconnect(t, "A", "S", "09:10:00"),
	}

	var sessions []models.Session
	aggs := NewAggregator(ByPlayer, WithSessionHook(func(s models.Session) {
		sessions = append(sessions, s)
	})).Aggregate(events)

	require.Len(t, aggs, 1)
	assert.Equal(t, "00:05", FormatDuration(aggs[0].TotalDuration))
	assert.Equal(t, 1, aggs[0].SessionCount)
	assert.Equal(t, 1, aggs[0].ErrorCount)

	require.Len(t, sessions, 2)
	assert.False(t, sessions[0].Valid)
	assert.Equal(t, events[0].At(), sessions[0].Start)
	assert.True(t, sessions[1].Valid)
	assert.Equal(t, 5*time.Minute, sessions[1].Duration())
}

func TestAggregate_OrphanDisconnect(t *testing.T) {
	aggs := aggregate(t, ByPlayer, models.EventStore{
		testutil.Disconnect(t, "A", "S", "09:00:00"),
	})

	require.Len(t, aggs, 1)
	assert.Equal(t, "A", aggs[0].Key.Player)
	assert.Equal(t, "00:00", FormatDuration(aggs[0].TotalDuration))
	assert.Equal(t, 0, aggs[0].SessionCount)
	assert.Equal(t, 0, aggs[0].ErrorCount)
}

func TestAggregate_DanglingConnect(t *testing.T) {
	aggs := aggregate(t, ByPlayer, models.EventStore{
		testutil.Connect(t, "A", "S", "09:00:00"),
	})

	require.Len(t, aggs, 1)
	assert.Equal(t, time.Duration(0), aggs[0].TotalDuration)
	assert.Equal(t, 0, aggs[0].SessionCount)
	assert.Equal(t, 0, aggs[0].ErrorCount)
}

func TestAggregate_DisconnectAfterDisconnect(t *testing.T) {
	aggs := aggregate(t, ByPlayer, models.EventStore{
		testutil.Connect(t, "A", "S", "09:00:00"),
		testutil.Disconnect(t, "A", "S", "09:10:00"),
		testutil.Disconnect(t, "A", "S", "09:20:00"),
	})

	require.Len(t, aggs, 1)
	assert.Equal(t, 10*time.Minute, aggs[0].TotalDuration)
	assert.Equal(t, 1, aggs[0].SessionCount)
	assert.Equal(t, 0, aggs[0].ErrorCount)
}

func TestAggregate_KeyChange(t *testing.T) {
	// unordered input across players, the way merged files arrive
	events := models.EventStore{
		testutil.Connect(t, "B", "S", "11:00:00"),
		testutil.Connect(t, "A", "S", "10:00:00"),
		testutil.Disconnect(t, "B", "S", "12:00:00"),
		testutil.Disconnect(t, "A", "S", "10:20:00"),
		testutil.Connect(t, "C", "S", "13:00:00"),
		testutil.Disconnect(t, "C", "S", "13:01:00"),
	}

	aggs := aggregate(t, ByPlayer, events)
	require.Len(t, aggs, 3)

	assert.Equal(t, "A", aggs[0].Key.Player)
	assert.Equal(t, 20*time.Minute, aggs[0].TotalDuration)
	assert.Equal(t, "B", aggs[1].Key.Player)
	assert.Equal(t, time.Hour, aggs[1].TotalDuration)
	// last key is finalized at end of stream
	assert.Equal(t, "C", aggs[2].Key.Player)
	assert.Equal(t, time.Minute, aggs[2].TotalDuration)
	assert.Equal(t, 1, aggs[2].SessionCount)
}

func TestAggregate_ConnectDoesNotPairAcrossKeys(t *testing.T) {
	// A's connect is dangling; B's disconnect has no open connect of its own
	events := models.EventStore{
		testutil.Connect(t, "A", "S", "10:00:00"),
		testutil.Disconnect(t, "B", "S", "10:30:00"),
	}

	aggs := aggregate(t, ByPlayer, events)
	require.Len(t, aggs, 2)
	for _, agg := range aggs {
		assert.Equal(t, 0, agg.SessionCount)
		assert.Equal(t, time.Duration(0), agg.TotalDuration)
	}
}

func TestAggregate_ByPlayerServer(t *testing.T) {
	events := models.EventStore{
		testutil.Connect(t, "A", "S1", "10:00:00"),
		testutil.Disconnect(t, "A", "S1", "10:30:00"),
		testutil.Connect(t, "A", "S2", "11:00:00"),
		testutil.Disconnect(t, "A", "S2", "12:00:00"),
		testutil.Connect(t, "A", "S1", "13:00:00"),
		testutil.Disconnect(t, "A", "S1", "13:15:00"),
	}

	aggs := aggregate(t, ByPlayerServer, events)
	require.Len(t, aggs, 2)
	assert.Equal(t, models.GroupKey{Player: "A", Server: "S1"}, aggs[0].Key)
	assert.Equal(t, 45*time.Minute, aggs[0].TotalDuration)
	assert.Equal(t, 2, aggs[0].SessionCount)
	assert.Equal(t, models.GroupKey{Player: "A", Server: "S2"}, aggs[1].Key)
	assert.Equal(t, time.Hour, aggs[1].TotalDuration)

	// by player the same events form one group
	byPlayer := aggregate(t, ByPlayer, events)
	require.Len(t, byPlayer, 1)
	assert.Equal(t, 105*time.Minute, byPlayer[0].TotalDuration)
	assert.Equal(t, 3, byPlayer[0].SessionCount)
}

func TestAggregate_AcrossMidnight(t *testing.T) {
	aggs := aggregate(t, ByPlayer, testutil.SampleStore(t))

	var kerry *models.PlayerAggregate
	for i := range aggs {
		if aggs[i].Key.Player == "Kerry, Jr." {
			kerry = &aggs[i]
		}
	}
	require.NotNil(t, kerry)
	assert.Equal(t, 30*time.Minute, kerry.TotalDuration)
}

func TestAggregate_IgnoresMissionChanges(t *testing.T) {
	events := models.EventStore{
		testutil.Connect(t, "A", "S", "10:00:00"),
		testutil.Mission(t, "co10_escape", "S", "10:10:00"),
		testutil.Disconnect(t, "A", "S", "10:30:00"),
	}

	aggs := aggregate(t, ByPlayer, events)
	require.Len(t, aggs, 1)
	assert.Equal(t, 1, aggs[0].SessionCount)
}

func TestAggregate_EmptyPlayerName(t *testing.T) {
	events := models.EventStore{
		testutil.Connect(t, "", "S", "10:00:00"),
		testutil.Disconnect(t, "", "S", "10:05:00"),
	}

	aggs := aggregate(t, ByPlayer, events)
	require.Len(t, aggs, 1)
	assert.Equal(t, "", aggs[0].Key.Player)
	assert.Equal(t, 1, aggs[0].SessionCount)
}

func TestAggregate_DoesNotModifyInput(t *testing.T) {
	events := models.EventStore{
		testutil.Disconnect(t, "B", "S", "12:00:00"),
		testutil.Connect(t, "A", "S", "10:00:00"),
	}
	before := append(models.EventStore(nil), events...)

	aggregate(t, ByPlayer, events)
	assert.Equal(t, before, events)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, aggregate(t, ByPlayer, nil))
}

func TestAggregate_MissionAttribution(t *testing.T) {
	events := models.EventStore{
		testutil.Mission(t, "co10_escape", "S1", "09:00:00"),
		testutil.Mission(t, "tvt_other", "S2", "10:00:00"),
		testutil.Connect(t, "A", "S1", "09:30:00"),
		testutil.Disconnect(t, "A", "S1", "10:30:00"),
		testutil.Mission(t, "co12_next", "S1", "10:30:01"),
		testutil.Connect(t, "B", "S2", "09:00:00"),
		testutil.Disconnect(t, "B", "S2", "09:30:00"),
	}

	aggs := NewAggregator(ByPlayerMission, WithMissionIndex(NewMissionIndex(events))).Aggregate(events)
	require.Len(t, aggs, 2)
	assert.Equal(t, "co10_escape", aggs[0].LastMission)
	// no mission had started on S2 before B left
	assert.Equal(t, "", aggs[1].LastMission)
}
