// Package report turns an EventStore into playtime reports.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/armalogs/backend/internal/models"
)

// Mode names a report layout.
type Mode string

const (
	ModePlaytime Mode = "playtime"
	ModeServers  Mode = "servers"
	ModeMissions Mode = "missions"
	ModeSessions Mode = "sessions"
)

// ErrUnknownMode is returned by ParseMode for an unsupported mode name.
var ErrUnknownMode = errors.New("unknown report mode")

// Modes returns all report modes in display order.
func Modes() []Mode {
	return []Mode{ModePlaytime, ModeServers, ModeMissions, ModeSessions}
}

// ParseMode converts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Grouping returns the grouping the mode aggregates with.
func (m Mode) Grouping() Grouping {
	switch m {
	case ModeServers, ModeSessions:
		return ByPlayerServer
	case ModeMissions:
		return ByPlayerMission
	default:
		return ByPlayer
	}
}

// Result is a computed report.
type Result struct {
	Mode     Mode
	Rows     []models.ReportRow
	Sessions []models.Session
}

// Build aggregates events for the given mode. Sessions is only filled for
// ModeSessions.
func Build(events models.EventStore, mode Mode) (*Result, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	var opts []Option
	if mode == ModeMissions {
		opts = append(opts, WithMissionIndex(NewMissionIndex(events)))
	}
	result := &Result{Mode: mode}
	if mode == ModeSessions {
		result.Sessions = make([]models.Session, 0)
		opts = append(opts, WithSessionHook(func(s models.Session) {
			result.Sessions = append(result.Sessions, s)
		}))
	}

	aggs := NewAggregator(mode.Grouping(), opts...).Aggregate(events)
	result.Rows = Rows(mode, aggs)
	return result, nil
}

// Rows converts aggregates into report rows in the order of the mode.
func Rows(mode Mode, aggs []models.PlayerAggregate) []models.ReportRow {
	rows := make([]models.ReportRow, 0, len(aggs))
	for _, agg := range aggs {
		row := models.ReportRow{
			Player:   agg.Key.Player,
			Duration: agg.TotalDuration,
			Sessions: agg.SessionCount,
			Errors:   agg.ErrorCount,
		}
		switch mode {
		case ModeServers, ModeSessions:
			row.Server = agg.Key.Server
		case ModeMissions:
			row.Server = agg.Key.Server
			row.Mission = agg.LastMission
		}
		rows = append(rows, row)
	}

	switch mode {
	case ModeServers, ModeSessions:
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Player != rows[j].Player {
				return rows[i].Player < rows[j].Player
			}
			return rows[i].Server < rows[j].Server
		})
	case ModeMissions:
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Player != rows[j].Player {
				return rows[i].Player > rows[j].Player
			}
			if rows[i].Duration != rows[j].Duration {
				return rows[i].Duration > rows[j].Duration
			}
			return rows[i].Mission < rows[j].Mission
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Duration != rows[j].Duration {
				return rows[i].Duration > rows[j].Duration
			}
			return rows[i].Player < rows[j].Player
		})
	}

	return rows
}
