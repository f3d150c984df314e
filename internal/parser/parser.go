// Package parser extracts player connect, disconnect and mission events from
// Arma server logs.
package parser

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/armalogs/backend/internal/models"
)

// ProgressCallback is called once per log file after it has been extracted.
type ProgressCallback func(result models.FileResult)

// Extractor turns one server log into events.
type Extractor interface {
	// Name returns the unique name of the extractor.
	Name() string
	// Parse reads a whole log. Events are dated from anchor onwards.
	Parse(r io.Reader, server string, anchor time.Time) (models.EventStore, error)
	// ParseFile opens path and parses it with the server name derived from path.
	ParseFile(ctx context.Context, file models.LogFile) (models.EventStore, error)
}

// ParseTimePrefix reads the wall-clock stamp at the start of a log line:
// "H:MM:SS" or "HH:MM:SS", where a one digit hour may be padded with a space
// (" 7:05:09"). Lines without a valid stamp return false.
func ParseTimePrefix(line string) (models.TimeOfDay, bool) {
	if len(line) < 7 {
		return 0, false
	}

	var hour, pos int
	switch {
	case len(line) >= 8 && line[2] == ':':
		hour = parseHour2(line[0:2])
		pos = 3
	case line[1] == ':':
		hour = parseDigit(line[0])
		pos = 2
	default:
		return 0, false
	}
	if hour < 0 || hour > 23 {
		return 0, false
	}

	if len(line) < pos+5 || line[pos+2] != ':' {
		return 0, false
	}
	minute := parseInt2(line[pos : pos+2])
	second := parseInt2(line[pos+3 : pos+5])
	if minute < 0 || minute > 59 || second < 0 || second > 59 {
		return 0, false
	}

	return models.NewTimeOfDay(hour, minute, second), true
}

// parseHour2 parses a two character hour that may carry a leading space.
// Returns -1 on error.
func parseHour2(s string) int {
	if s[0] == ' ' {
		return parseDigit(s[1])
	}
	return parseInt2(s)
}

func parseDigit(c byte) int {
	d := c - '0'
	if d > 9 {
		return -1
	}
	return int(d)
}

// parseInt2 parses a 2-digit decimal string. Returns -1 on error.
func parseInt2(s string) int {
	if len(s) != 2 {
		return -1
	}
	d1, d2 := s[0]-'0', s[1]-'0'
	if d1 > 9 || d2 > 9 {
		return -1
	}
	return int(d1)*10 + int(d2)
}

// ServerName derives the server label of a log file: the base name of the
// directory two levels above it ("Server1/profile/server.log" -> "Server1").
// Logs nested differently get a wrong label; that is accepted.
func ServerName(path string) string {
	return filepath.Base(filepath.Dir(filepath.Dir(filepath.Clean(path))))
}

// AccessTime returns the last access time recorded for a file, or its
// modification time where the platform does not expose one.
func AccessTime(fi os.FileInfo) time.Time {
	return accessTime(fi)
}
