// Package testutil holds fixture builders shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/armalogs/backend/internal/models"
)

// WriteServerLog creates root/<server>/<profile>/<name> with content and the
// sibling root/<server>/addons directory, so the file is discovered as a log of
// that server. atime and mtime are set to anchor unless it is zero.
func WriteServerLog(t *testing.T, root, server, profile, name, content string, anchor time.Time) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Join(root, server, "addons"), 0755); err != nil {
		t.Fatalf("Failed to create addons dir: %v", err)
	}
	dir := filepath.Join(root, server, profile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create profile dir: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write log file: %v", err)
	}
	if !anchor.IsZero() {
		if err := os.Chtimes(path, anchor, anchor); err != nil {
			t.Fatalf("Failed to set file times: %v", err)
		}
	}

	return path
}

// Event builds a LogEvent from "YYYY-MM-DD" and "HH:MM:SS" strings.
func Event(t *testing.T, kind models.EventKind, subject, server, date, clock string) models.LogEvent {
	t.Helper()

	d, err := models.ParseDate(date)
	if err != nil {
		t.Fatalf("bad fixture date: %v", err)
	}
	tod, err := models.ParseTimeOfDay(clock)
	if err != nil {
		t.Fatalf("bad fixture time: %v", err)
	}

	return models.LogEvent{Date: d, Time: tod, Server: server, Kind: kind, Subject: subject}
}

// Connect builds a connect event on 2024-01-15.
func Connect(t *testing.T, player, server, clock string) models.LogEvent {
	t.Helper()
	return Event(t, models.EventConnect, player, server, "2024-01-15", clock)
}

// Disconnect builds a disconnect event on 2024-01-15.
func Disconnect(t *testing.T, player, server, clock string) models.LogEvent {
	t.Helper()
	return Event(t, models.EventDisconnect, player, server, "2024-01-15", clock)
}

// Mission builds a mission change event on 2024-01-15.
func Mission(t *testing.T, mission, server, clock string) models.LogEvent {
	t.Helper()
	return Event(t, models.EventMissionChange, mission, server, "2024-01-15", clock)
}

// SampleStore returns a small store covering every event kind, two servers,
// a midnight crossing and an empty player name.
func SampleStore(t *testing.T) models.EventStore {
	t.Helper()
	return models.EventStore{
		Event(t, models.EventMissionChange, "co10_escape", "Server1", "2024-01-15", "09:55:00"),
		Event(t, models.EventConnect, "Miller", "Server1", "2024-01-15", "10:00:00"),
		Event(t, models.EventDisconnect, "Miller", "Server1", "2024-01-15", "10:30:00"),
		Event(t, models.EventConnect, "Kerry, Jr.", "Server2", "2024-01-15", "23:50:00"),
		Event(t, models.EventDisconnect, "Kerry, Jr.", "Server2", "2024-01-16", "00:20:00"),
		Event(t, models.EventConnect, "", "Server2", "2024-01-16", "01:00:00"),
	}
}
