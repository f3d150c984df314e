package storage

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/glebarez/go-sqlite"

	"github.com/armalogs/backend/internal/models"
)

// SQLiteCodec stores events in a SQLite file with the same layout as the
// DuckDB table. Dates are kept as YYYY-MM-DD text.
type SQLiteCodec struct{}

func NewSQLiteCodec() *SQLiteCodec {
	return &SQLiteCodec{}
}

func (c *SQLiteCodec) Name() string {
	return "sqlite"
}

func (c *SQLiteCodec) Extensions() []string {
	return []string{".sqlite", ".sqlite3"}
}

func (c *SQLiteCodec) Save(path string, events models.EventStore) (err error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing old database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening sqlite database: %w", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE events (
			id     INTEGER PRIMARY KEY,
			date   TEXT NOT NULL,
			time   INTEGER NOT NULL,
			server TEXT NOT NULL,
			event  INTEGER NOT NULL,
			player TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`INSERT INTO events (id, date, time, server, event, player) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		if _, err = stmt.Exec(i, e.DateString(), int(e.Time), e.Server, int(e.Kind), e.Subject); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (c *SQLiteCodec) Load(path string) (models.EventStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT date, time, server, event, player FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var events models.EventStore
	for rows.Next() {
		var (
			e    models.LogEvent
			date string
			tod  int
			kind int
		)
		if err := rows.Scan(&date, &tod, &e.Server, &kind, &e.Subject); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if e.Date, err = models.ParseDate(date); err != nil {
			return nil, fmt.Errorf("row %d: %w", len(events), err)
		}
		e.Time = models.TimeOfDay(tod)
		e.Kind = models.EventKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if events == nil {
		events = models.EventStore{}
	}
	return events, nil
}
