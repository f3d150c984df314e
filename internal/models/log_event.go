// Package models contains domain types for the Arma playtime reports.
package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EventKind identifies what a log line reported. The integer values are the
// codes used in the persisted event table.
type EventKind int

const (
	EventConnect       EventKind = 1
	EventDisconnect    EventKind = 2
	EventMissionChange EventKind = 3
)

// String returns a lower-case name for the kind.
func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventMissionChange:
		return "mission"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known event codes.
func (k EventKind) Valid() bool {
	return k >= EventConnect && k <= EventMissionChange
}

// TimeOfDay is a wall-clock time with second resolution, stored as seconds
// since midnight.
type TimeOfDay int32

// SecondsPerDay is the number of distinct TimeOfDay values.
const SecondsPerDay = 24 * 60 * 60

// NewTimeOfDay builds a TimeOfDay from its components. No range checks are done.
func NewTimeOfDay(hour, min, sec int) TimeOfDay {
	return TimeOfDay(hour*3600 + min*60 + sec)
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }

// Second returns the second component.
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

// String formats the time as "HH:MM:SS".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// ParseTimeOfDay parses "H:MM:SS" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	var fields [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
		}
		fields[i] = v
	}
	h, m, sec := fields[0], fields[1], fields[2]
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("time of day out of range: %q", s)
	}
	return NewTimeOfDay(h, m, sec), nil
}

// DateLayout is the layout of the date column in the event table.
const DateLayout = "2006-01-02"

// CivilDate truncates t to its calendar date in t's own location and returns
// that date at midnight UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" date into a civil date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// LogEvent is one connect, disconnect or mission change read from a server log.
// Date is a civil date (midnight UTC); the source lines carry no date, so it is
// reconstructed from the file's access time and midnight crossings.
type LogEvent struct {
	Date    time.Time `json:"date" msgpack:"date"`
	Time    TimeOfDay `json:"time" msgpack:"time"`
	Server  string    `json:"server" msgpack:"server"`
	Kind    EventKind `json:"event" msgpack:"event"`
	Subject string    `json:"player" msgpack:"player"`
}

// At returns the reconstructed instant of the event.
func (e LogEvent) At() time.Time {
	return e.Date.Add(e.Time.Duration())
}

// DateString returns the date column value.
func (e LogEvent) DateString() string {
	return e.Date.Format(DateLayout)
}

// EventStore is the flat list of events extracted from all processed logs.
// Events from different files carry no relative order.
type EventStore []LogEvent

// Len returns the number of events.
func (s EventStore) Len() int { return len(s) }

// SortByTime orders the events by reconstructed instant. The sort is stable, so
// events sharing a second keep their read order.
func (s EventStore) SortByTime() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].At().Before(s[j].At())
	})
}

// Servers returns the distinct server names in ascending order.
func (s EventStore) Servers() []string {
	return distinct(s, func(e LogEvent) (string, bool) { return e.Server, true })
}

// Players returns the distinct player names in ascending order.
func (s EventStore) Players() []string {
	return distinct(s, func(e LogEvent) (string, bool) {
		return e.Subject, e.Kind == EventConnect || e.Kind == EventDisconnect
	})
}

// CountByKind returns how many events of each kind the store holds.
func (s EventStore) CountByKind() map[EventKind]int {
	counts := make(map[EventKind]int, 3)
	for _, e := range s {
		counts[e.Kind]++
	}
	return counts
}

func distinct(s EventStore, pick func(LogEvent) (string, bool)) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range s {
		v, ok := pick(e)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
