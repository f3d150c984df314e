package models

import "time"

// LogFile is a server log handed to the extractor together with the date anchor
// used to reconstruct event dates.
type LogFile struct {
	Path   string
	Anchor time.Time
}

// FileResult summarises the extraction of one log file.
type FileResult struct {
	Path   string     `json:"path"`
	Server string     `json:"server"`
	Events EventStore `json:"-"`
	Err    error      `json:"-"`
}
