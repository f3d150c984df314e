package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/armalogs/backend/internal/models"
)

// CSVHeader is the column order written by CSVCodec.
var CSVHeader = []string{"date", "time", "server", "event", "player"}

// CSVCodec stores events as "date,time,server,event,player" rows. event holds
// the integer kind code.
type CSVCodec struct{}

func NewCSVCodec() *CSVCodec {
	return &CSVCodec{}
}

func (c *CSVCodec) Name() string {
	return "csv"
}

func (c *CSVCodec) Extensions() []string {
	return []string{".csv"}
}

func (c *CSVCodec) Save(path string, events models.EventStore) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriterSize(f, 64*1024)
	if err := WriteCSV(w, events); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *CSVCodec) Load(path string) (models.EventStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadCSV(bufio.NewReaderSize(f, 64*1024))
}

// WriteCSV writes the header and one row per event.
func WriteCSV(w io.Writer, events models.EventStore) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	row := make([]string, len(CSVHeader))
	for _, e := range events {
		row[0] = e.DateString()
		row[1] = e.Time.String()
		row[2] = e.Server
		row[3] = strconv.Itoa(int(e.Kind))
		row[4] = e.Subject
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV reads an event table. Columns are looked up by header name, so extra
// columns such as the unnamed index column pandas writes are ignored.
func ReadCSV(r io.Reader) (models.EventStore, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty event table")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	events := make(models.EventStore, 0)
	// Strings repeat on nearly every row.
	names := make(map[string]string)
	intern := func(s string) string {
		if v, ok := names[s]; ok {
			return v
		}
		names[s] = s
		return s
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		e, err := parseRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		e.Server = intern(e.Server)
		e.Subject = intern(e.Subject)
		events = append(events, e)
	}

	return events, nil
}

type columns struct {
	date, time, server, event, player int
}

func mapColumns(header []string) (columns, error) {
	cols := columns{-1, -1, -1, -1, -1}
	for i, name := range header {
		switch name {
		case "date":
			cols.date = i
		case "time":
			cols.time = i
		case "server":
			cols.server = i
		case "event":
			cols.event = i
		case "player":
			cols.player = i
		}
	}
	for name, idx := range map[string]int{
		"date": cols.date, "time": cols.time, "server": cols.server,
		"event": cols.event, "player": cols.player,
	} {
		if idx < 0 {
			return cols, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}

func parseRow(rec []string, cols columns) (models.LogEvent, error) {
	last := max(cols.date, cols.time, cols.server, cols.event, cols.player)
	if len(rec) <= last {
		return models.LogEvent{}, fmt.Errorf("expected at least %d fields, got %d", last+1, len(rec))
	}

	date, err := models.ParseDate(rec[cols.date])
	if err != nil {
		return models.LogEvent{}, err
	}
	tod, err := models.ParseTimeOfDay(rec[cols.time])
	if err != nil {
		return models.LogEvent{}, err
	}
	code, err := strconv.Atoi(rec[cols.event])
	if err != nil {
		return models.LogEvent{}, fmt.Errorf("invalid event code %q", rec[cols.event])
	}
	kind := models.EventKind(code)
	if !kind.Valid() {
		return models.LogEvent{}, fmt.Errorf("unknown event code %d", code)
	}

	return models.LogEvent{
		Date:    date,
		Time:    tod,
		Server:  rec[cols.server],
		Kind:    kind,
		Subject: rec[cols.player],
	}, nil
}
