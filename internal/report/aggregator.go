package report

import (
	"sort"
	"strings"

	"github.com/armalogs/backend/internal/models"
)

// Grouping selects the key sessions are accumulated under.
type Grouping int

const (
	// ByPlayer groups on the player name only.
	ByPlayer Grouping = iota
	// ByPlayerServer groups on player and server.
	ByPlayerServer
	// ByPlayerMission groups like ByPlayerServer; the mission is attributed to
	// each aggregate afterwards from its last session end.
	ByPlayerMission
)

func (g Grouping) key(e *models.LogEvent) models.GroupKey {
	if g == ByPlayer {
		return models.GroupKey{Player: e.Subject}
	}
	return models.GroupKey{Player: e.Subject, Server: e.Server}
}

func compareKeys(a, b models.GroupKey) int {
	if c := strings.Compare(a.Player, b.Player); c != 0 {
		return c
	}
	return strings.Compare(a.Server, b.Server)
}

// SessionFunc receives every session the fold closes, and every connect it
// discards because another connect for the same key followed.
type SessionFunc func(models.Session)

// Aggregator pairs connects with disconnects and sums the sessions per
// grouping key.
type Aggregator struct {
	grouping  Grouping
	missions  *MissionIndex
	onSession SessionFunc
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMissionIndex sets the index used by ByPlayerMission. Without it every
// aggregate gets an empty mission.
func WithMissionIndex(idx *MissionIndex) Option {
	return func(a *Aggregator) { a.missions = idx }
}

// WithSessionHook registers fn to receive the individual sessions.
func WithSessionHook(fn SessionFunc) Option {
	return func(a *Aggregator) { a.onSession = fn }
}

// NewAggregator creates an aggregator for the given grouping.
func NewAggregator(grouping Grouping, opts ...Option) *Aggregator {
	a := &Aggregator{grouping: grouping}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// foldState is the whole state of one aggregation pass.
type foldState struct {
	previous *models.LogEvent
	current  *models.PlayerAggregate
	done     []models.PlayerAggregate
}

// Aggregate folds the connect and disconnect events of events into one
// aggregate per grouping key, in key order. events is not modified. Anomalies
// never fail the pass: a repeated connect counts as an error and an unmatched
// disconnect is ignored.
func (a *Aggregator) Aggregate(events models.EventStore) []models.PlayerAggregate {
	sorted := make([]models.LogEvent, 0, len(events))
	for _, e := range events {
		if e.Kind == models.EventConnect || e.Kind == models.EventDisconnect {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := compareKeys(a.grouping.key(&sorted[i]), a.grouping.key(&sorted[j])); c != 0 {
			return c < 0
		}
		return sorted[i].At().Before(sorted[j].At())
	})

	var st foldState
	for i := range sorted {
		a.step(&st, &sorted[i])
	}
	a.finalize(&st)

	return st.done
}

func (a *Aggregator) step(st *foldState, event *models.LogEvent) {
	key := a.grouping.key(event)
	if st.current == nil || st.current.Key != key {
		a.finalize(st)
		st.current = &models.PlayerAggregate{Key: key}
	}

	var sameKey bool
	if st.previous != nil {
		sameKey = a.grouping.key(st.previous) == key
	}

	switch event.Kind {
	case models.EventConnect:
		if st.previous != nil && st.previous.Kind == models.EventConnect && sameKey {
			st.current.ErrorCount++
			a.emit(models.Session{
				Player: st.previous.Subject,
				Server: st.previous.Server,
				Start:  st.previous.At(),
			})
		}

	case models.EventDisconnect:
		if st.previous != nil && st.previous.Kind == models.EventConnect && sameKey {
			end := event.At()
			st.current.TotalDuration += end.Sub(st.previous.At())
			st.current.SessionCount++
			st.current.LastServer = event.Server
			st.current.LastEvent = end
			a.emit(models.Session{
				Player: event.Subject,
				Server: event.Server,
				Start:  st.previous.At(),
				End:    end,
				Valid:  true,
			})
		}
	}

	st.previous = event
}

func (a *Aggregator) finalize(st *foldState) {
	if st.current == nil {
		return
	}
	if a.grouping == ByPlayerMission && st.current.SessionCount > 0 {
		if mission, ok := a.missions.LatestAtOrBefore(st.current.LastServer, st.current.LastEvent); ok {
			st.current.LastMission = mission
		}
	}
	st.done = append(st.done, *st.current)
	st.current = nil
}

func (a *Aggregator) emit(s models.Session) {
	if a.onSession != nil {
		a.onSession(s)
	}
}
