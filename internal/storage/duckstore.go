package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/armalogs/backend/internal/models"
)

// DuckCodec stores events in a DuckDB database file, table
//
//	events(id, date, time, server, event, player)
//
// where time is seconds since midnight. Rows are written with the Appender API
// and read back in id order.
type DuckCodec struct {
	batchSize int
}

func NewDuckCodec() *DuckCodec {
	return &DuckCodec{batchSize: 50000}
}

func (c *DuckCodec) Name() string {
	return "duckdb"
}

func (c *DuckCodec) Extensions() []string {
	return []string{".duckdb", ".db"}
}

var duckPragmas = []string{
	"PRAGMA memory_limit='1GB'",
	"PRAGMA threads=4",
	"PRAGMA enable_progress_bar=false",
}

func openDuckDB(dsn string, strict bool) (*sql.DB, error) {
	connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		for _, pragma := range duckPragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				if strict {
					return err
				}
				fmt.Fprintf(os.Stderr, "[DuckStore] Pragma warning: %v\n", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func (c *DuckCodec) Save(path string, events models.EventStore) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing old database: %w", err)
	}
	os.Remove(path + ".wal")

	fmt.Fprintf(os.Stderr, "[DuckStore] Creating database at: %s\n", path)
	db, err := openDuckDB(path, true)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE events (
			id     BIGINT PRIMARY KEY,
			date   DATE NOT NULL,
			"time" INTEGER NOT NULL,
			server VARCHAR NOT NULL,
			event  TINYINT NOT NULL,
			player VARCHAR NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	start := time.Now()
	for lo := 0; lo < len(events); lo += c.batchSize {
		hi := min(lo+c.batchSize, len(events))
		if err := appendBatch(db, lo, events[lo:hi]); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "[DuckStore] Wrote %d events in %v\n", len(events), time.Since(start))

	return nil
}

// appendBatch writes events with the native Appender API; baseID is the id of
// the first event.
func appendBatch(db *sql.DB, baseID int, events models.EventStore) error {
	conn, err := db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "events")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, e := range events {
			err := appender.AppendRow(
				int64(baseID+i),
				e.Date,
				int32(e.Time),
				e.Server,
				int8(e.Kind),
				e.Subject,
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", baseID+i, err)
			}
		}

		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

func (c *DuckCodec) Load(path string) (models.EventStore, error) {
	db, err := openDuckDB(path+"?access_mode=read_only", false)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to get event count: %w", err)
	}

	rows, err := db.Query(`SELECT date, "time", server, event, player FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	events := make(models.EventStore, 0, count)
	for rows.Next() {
		var (
			e    models.LogEvent
			date time.Time
			tod  int32
			kind int8
		)
		if err := rows.Scan(&date, &tod, &e.Server, &kind, &e.Subject); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		e.Date = models.CivilDate(date.UTC())
		e.Time = models.TimeOfDay(tod)
		e.Kind = models.EventKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "[DuckStore] Loaded %d events from %s\n", len(events), path)
	return events, nil
}
