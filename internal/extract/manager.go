package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/armalogs/backend/internal/models"
)

// Status represents the extraction job status.
type Status string

const (
	StatusDiscovering Status = "discovering"
	StatusExtracting  Status = "extracting"
	StatusSaving      Status = "saving"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
)

// Job represents an async extraction job.
type Job struct {
	ID           string           `json:"id"`
	Roots        []string         `json:"roots"`
	Status       Status           `json:"status"`
	Progress     float64          `json:"progress"`
	Stage        string           `json:"stage"`
	Servers      int              `json:"servers"`
	FilesTotal   int              `json:"filesTotal"`
	FilesDone    int              `json:"filesDone"`
	FailedFiles  []string         `json:"failedFiles,omitempty"`
	EventCount   int              `json:"eventCount"`
	// EventsByKind counts events per kind name ("connect", "disconnect", "mission").
	EventsByKind map[string]int   `json:"eventsByKind,omitempty"`
	ServerNames  []string         `json:"serverNames,omitempty"`
	Players      int              `json:"players"`
	FileInfo     *models.FileInfo `json:"fileInfo,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
}

// Store defines the interface needed from storage layer.
type Store interface {
	SaveEvents(name string, events models.EventStore) (*models.FileInfo, error)
}

// Manager handles async extraction jobs.
type Manager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	store    Store
	defaults Options
	format   string
}

// NewManager creates a job manager. defaults supplies pattern, workers and
// markers for every job; format is the extension of the stored event table.
func NewManager(store Store, defaults Options, format string) *Manager {
	if format == "" {
		format = ".csv"
	}
	return &Manager{
		jobs:     make(map[string]*Job),
		store:    store,
		defaults: defaults,
		format:   format,
	}
}

// StartJob begins async extraction of roots and returns a snapshot of the new job.
func (m *Manager) StartJob(roots []string) *Job {
	job := &Job{
		ID:        uuid.New().String(),
		Roots:     roots,
		Status:    StatusDiscovering,
		Stage:     "discovering logs",
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := *job
	m.mu.Unlock()

	go m.processJob(job)

	return &snapshot
}

// GetJob returns a copy of a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	snapshot.FailedFiles = append([]string(nil), job.FailedFiles...)
	snapshot.ServerNames = append([]string(nil), job.ServerNames...)
	if job.EventsByKind != nil {
		snapshot.EventsByKind = make(map[string]int, len(job.EventsByKind))
		for k, n := range job.EventsByKind {
			snapshot.EventsByKind[k] = n
		}
	}
	return &snapshot, true
}

// processJob handles the actual async processing.
func (m *Manager) processJob(job *Job) {
	tag := shortID(job.ID)
	fmt.Printf("[ExtractJob %s] Starting extraction of %v\n", tag, job.Roots)
	start := time.Now()

	opts := m.defaults
	opts.Roots = job.Roots

	hooks := Hooks{
		OnServer: func(string) {
			m.update(job, func(j *Job) { j.Servers++ })
		},
		OnDiscovered: func(total int) {
			m.update(job, func(j *Job) {
				j.FilesTotal = total
				j.Status = StatusExtracting
				j.Stage = "extracting events"
				j.Progress = 10
			})
		},
		OnFileDone: func(done int) {
			m.update(job, func(j *Job) {
				if done > j.FilesDone {
					j.FilesDone = done
				}
				if j.FilesTotal > 0 {
					j.Progress = 10 + float64(j.FilesDone)*80/float64(j.FilesTotal)
				}
			})
		},
		OnFile: func(r models.FileResult) {
			if r.Err != nil {
				fmt.Printf("[ExtractJob %s] Skipped %s: %v\n", tag, r.Path, r.Err)
				m.update(job, func(j *Job) { j.FailedFiles = append(j.FailedFiles, r.Path) })
			}
		},
	}

	events, _, err := Run(context.Background(), opts, hooks)
	if err != nil {
		m.markJobError(job, err.Error())
		return
	}

	m.update(job, func(j *Job) {
		j.Status = StatusSaving
		j.Stage = "saving event table"
		j.Progress = 90
		j.EventCount = events.Len()
		j.EventsByKind = make(map[string]int, 3)
		for kind, n := range events.CountByKind() {
			j.EventsByKind[kind.String()] = n
		}
		j.ServerNames = events.Servers()
		j.Players = len(events.Players())
	})

	name := fmt.Sprintf("connects-%s%s", start.Format("20060102-150405"), m.format)
	info, err := m.store.SaveEvents(name, events)
	if err != nil {
		m.markJobError(job, fmt.Sprintf("failed to save events: %v", err))
		return
	}

	m.markJobComplete(job, info)
	fmt.Printf("[ExtractJob %s] Complete: %d events in %v -> %s\n", tag, len(events), time.Since(start), info.ID)
}

// update applies fn to job under the lock.
func (m *Manager) update(job *Job, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(job)
}

// markJobComplete marks job as complete (thread-safe).
func (m *Manager) markJobComplete(job *Job, info *models.FileInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.FileInfo = info
	job.Status = StatusComplete
	job.Stage = "done"
	job.Progress = 100
	now := time.Now()
	job.CompletedAt = &now
}

// markJobError marks job as failed (thread-safe).
func (m *Manager) markJobError(job *Job, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
	fmt.Printf("[ExtractJob %s] Error: %s\n", shortID(job.ID), errMsg)
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range m.jobs {
		if job.Status != StatusComplete && job.Status != StatusError {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
