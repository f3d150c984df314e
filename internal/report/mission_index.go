package report

import (
	"sort"
	"time"

	"github.com/armalogs/backend/internal/models"
)

type missionEntry struct {
	at      time.Time
	mission string
}

// MissionIndex answers "which mission was running on server S at time T".
// It is built once and never modified.
type MissionIndex struct {
	// per server, newest first
	servers map[string][]missionEntry
}

// NewMissionIndex indexes the mission change events of events. Other kinds
// are ignored.
func NewMissionIndex(events models.EventStore) *MissionIndex {
	idx := &MissionIndex{servers: make(map[string][]missionEntry)}
	for _, e := range events {
		if e.Kind != models.EventMissionChange {
			continue
		}
		idx.servers[e.Server] = append(idx.servers[e.Server], missionEntry{at: e.At(), mission: e.Subject})
	}

	for server, entries := range idx.servers {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].at.Before(entries[j].at)
		})
		// Reversing the stable ascending order puts the last logged of several
		// changes within the same second first.
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
		idx.servers[server] = entries
	}

	return idx
}

// LatestAtOrBefore returns the mission of the newest change on server that is
// not after t.
func (idx *MissionIndex) LatestAtOrBefore(server string, t time.Time) (string, bool) {
	if idx == nil {
		return "", false
	}
	entries := idx.servers[server]
	i := sort.Search(len(entries), func(i int) bool {
		return !entries[i].at.After(t)
	})
	if i == len(entries) {
		return "", false
	}
	return entries[i].mission, true
}
