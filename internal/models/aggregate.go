package models

import "time"

// GroupKey identifies the accumulator an event is folded into. Server is empty
// when grouping by player only.
type GroupKey struct {
	Player string
	Server string
}

// Session is one connect matched against a later disconnect. Valid is false for
// a connect that was discarded because another connect followed it; End is zero
// in that case.
type Session struct {
	Player string    `json:"player" msgpack:"player"`
	Server string    `json:"server" msgpack:"server"`
	Start  time.Time `json:"start" msgpack:"start"`
	End    time.Time `json:"end" msgpack:"end"`
	Valid  bool      `json:"valid" msgpack:"valid"`
}

// Duration returns End-Start for valid sessions and zero otherwise.
func (s Session) Duration() time.Duration {
	if !s.Valid {
		return 0
	}
	return s.End.Sub(s.Start)
}

// PlayerAggregate accumulates the sessions of one grouping key.
type PlayerAggregate struct {
	Key           GroupKey
	TotalDuration time.Duration
	SessionCount  int
	ErrorCount    int
	LastServer    string
	LastMission   string
	LastEvent     time.Time
}

// ReportRow is one line of a playtime report. Server and Mission are only
// rendered by the modes that group on them.
type ReportRow struct {
	Player   string        `json:"player" msgpack:"player"`
	Server   string        `json:"server,omitempty" msgpack:"server,omitempty"`
	Mission  string        `json:"mission,omitempty" msgpack:"mission,omitempty"`
	Duration time.Duration `json:"durationNs" msgpack:"durationNs"`
	Sessions int           `json:"sessions" msgpack:"sessions"`
	Errors   int           `json:"errors" msgpack:"errors"`
}
