package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/armalogs/backend/internal/models"
)

// SessionTimeLayout formats session start and end in the sessions report.
const SessionTimeLayout = "2006-01-02 15:04:05"

// FormatDuration renders d as zero-padded "HH:MM". Hours are not wrapped at
// 24 and seconds are truncated.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + FormatDuration(-d)
	}
	hours := int64(d / time.Hour)
	minutes := int64(d%time.Hour) / int64(time.Minute)
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// Header returns the CSV columns of mode.
func Header(mode Mode) []string {
	switch mode {
	case ModeServers:
		return []string{"player", "server", "duration", "sessions", "errors"}
	case ModeMissions:
		return []string{"player", "mission", "duration", "sessions", "errors"}
	case ModeSessions:
		return []string{"player", "server", "start", "end", "duration", "valid"}
	default:
		return []string{"player", "duration", "sessions", "errors"}
	}
}

// WriteCSV writes the report as CSV with the header of its mode.
func WriteCSV(w io.Writer, result *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(result.Mode)); err != nil {
		return err
	}

	if result.Mode == ModeSessions {
		for _, s := range result.Sessions {
			end := ""
			if s.Valid {
				end = s.End.Format(SessionTimeLayout)
			}
			rec := []string{
				s.Player,
				s.Server,
				s.Start.Format(SessionTimeLayout),
				end,
				FormatDuration(s.Duration()),
				strconv.FormatBool(s.Valid),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	} else {
		for _, r := range result.Rows {
			if err := cw.Write(rowRecord(result.Mode, r)); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func rowRecord(mode Mode, r models.ReportRow) []string {
	rec := []string{r.Player}
	switch mode {
	case ModeServers:
		rec = append(rec, r.Server)
	case ModeMissions:
		rec = append(rec, r.Mission)
	}
	return append(rec,
		FormatDuration(r.Duration),
		strconv.Itoa(r.Sessions),
		strconv.Itoa(r.Errors),
	)
}
