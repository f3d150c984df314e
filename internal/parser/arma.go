package parser

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/armalogs/backend/internal/models"
)

// ArmaLogParser extracts BattlEye player events and mission changes from Arma
// server logs (.log / .rpt).
//
// Log lines carry a time of day but no date, e.g.
//
//	12:01:44 BattlEye Server: Player #3 Miller (10.0.0.7:2304) connected
//	12:58:02 BattlEye Server: Player #3 Miller disconnected
//	 0:14:10 Mission file: co10_escape (__cur_mp)
//
// Dates are reconstructed from the anchor passed to Parse plus one day for every
// backwards jump of the clock between two consecutive stamped lines.
type ArmaLogParser struct {
	markers models.Markers
	intern  *StringIntern
	// playerTag is ServerTag+PlayerPrefix, the start of every player line.
	playerTag string
}

// NewArmaLogParser creates a parser for the given markers.
func NewArmaLogParser(markers models.Markers) *ArmaLogParser {
	return &ArmaLogParser{
		markers:   markers,
		intern:    NewStringIntern(),
		playerTag: markers.ServerTag + markers.PlayerPrefix,
	}
}

func (p *ArmaLogParser) Name() string {
	return "arma_server_log"
}

// ParseFile opens a log file and extracts its events. Rotated logs compressed
// as .gz are decompressed on the fly.
func (p *ArmaLogParser) ParseFile(ctx context.Context, file models.LogFile) (models.EventStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.EqualFold(filepath.Ext(file.Path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening compressed log: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	return p.Parse(r, ServerName(file.Path), file.Anchor)
}

// Parse reads r to the end. Bytes are decoded as ISO-8859-1, which cannot fail.
// A read error returns the events found so far together with the error.
func (p *ArmaLogParser) Parse(r io.Reader, server string, anchor time.Time) (models.EventStore, error) {
	reader := bufio.NewReaderSize(transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), 64*1024)

	server = p.intern.Intern(server)
	date0 := models.CivilDate(anchor)
	events := make(models.EventStore, 0)

	dayOffset := 0
	var prev models.TimeOfDay
	hasPrev := false

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")

			ts, timed := ParseTimePrefix(line)
			if timed && hasPrev && prev > ts {
				dayOffset++
			}
			prev, hasPrev = ts, timed

			if timed {
				if kind, subject, ok := p.matchLine(line); ok {
					events = append(events, models.LogEvent{
						Date:    date0.AddDate(0, 0, dayOffset),
						Time:    ts,
						Server:  server,
						Kind:    kind,
						Subject: p.intern.Intern(subject),
					})
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return events, fmt.Errorf("reading log: %w", err)
		}
	}

	return events, nil
}

// matchLine tries the connect, disconnect and mission extractors in that order.
func (p *ArmaLogParser) matchLine(line string) (models.EventKind, string, bool) {
	if name, ok := p.matchPlayer(line, p.markers.Connect); ok {
		return models.EventConnect, name, true
	}
	if name, ok := p.matchPlayer(line, p.markers.Disconnect); ok {
		return models.EventDisconnect, name, true
	}
	if mission, ok := p.matchMission(line); ok {
		return models.EventMissionChange, mission, true
	}
	return 0, "", false
}

// matchPlayer extracts the player name from
// "<ServerTag><PlayerPrefix><id> <name>[ <trailing tokens>]<suffix>".
// The name may be empty; it is returned as is.
func (p *ArmaLogParser) matchPlayer(line string, m models.EventMarker) (string, bool) {
	i := strings.Index(line, p.playerTag)
	if i < 0 {
		return "", false
	}
	rest := line[i+len(p.playerTag):]

	// BattlEye player number
	j := 0
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	if j == 0 || j == len(rest) || rest[j] != ' ' {
		return "", false
	}

	body := strings.TrimRight(rest[j:], " \t")
	if !strings.HasSuffix(body, m.Suffix) {
		return "", false
	}
	body = strings.TrimPrefix(body[:len(body)-len(m.Suffix)], " ")

	return dropTrailingTokens(body, m.TrailingTokens), true
}

// matchMission extracts "<Mission><name>[ (annotation)]".
func (p *ArmaLogParser) matchMission(line string) (string, bool) {
	if p.markers.Mission == "" {
		return "", false
	}
	i := strings.Index(line, p.markers.Mission)
	if i < 0 {
		return "", false
	}
	name := line[i+len(p.markers.Mission):]
	if k := strings.Index(name, " ("); k >= 0 {
		name = name[:k]
	}
	return strings.TrimSpace(name), true
}

// dropTrailingTokens removes the last n space separated tokens of s.
func dropTrailingTokens(s string, n int) string {
	for ; n > 0; n-- {
		k := strings.LastIndexByte(s, ' ')
		if k < 0 {
			return ""
		}
		s = s[:k]
	}
	return s
}
