package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/armalogs/backend/internal/models"
	"github.com/armalogs/backend/internal/report"
)

// MaxReports limits the number of cached reports to bound memory
const MaxReports = 50

// MaxCachedTables is the default number of decoded event tables kept.
const MaxCachedTables = 4

// ReportMaxAge is how long to keep completed reports before cleanup
const ReportMaxAge = 30 * time.Minute

// ReportKeepAliveWindow is how long to keep reports that are actively being read
const ReportKeepAliveWindow = 5 * time.Minute

// ErrReportNotFound is returned for an unknown or evicted report.
var ErrReportNotFound = errors.New("report not found")

// EventLoader loads the event table of a stored file.
type EventLoader interface {
	LoadEvents(fileID string) (models.EventStore, error)
}

// Manager runs report jobs in the background and caches their results.
type Manager struct {
	reports map[string]*ReportState
	mu      sync.RWMutex
	loader  EventLoader
	cache   *EventCache
}

// ReportState holds the report metadata and the computed result.
type ReportState struct {
	Report       *models.Report
	Result       *report.Result
	LastAccessed time.Time
	done         chan struct{}
}

// NewManager creates a report manager reading tables through loader.
func NewManager(loader EventLoader) *Manager {
	return &Manager{
		reports: make(map[string]*ReportState),
		loader:  loader,
		cache:   NewEventCache(MaxCachedTables),
	}
}

// StartReport validates mode and begins computing a report for fileID.
func (m *Manager) StartReport(fileID string, mode report.Mode) (*models.Report, error) {
	mode, err := report.ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	m.cleanupOldReportsIfNeeded()

	reportID := uuid.New().String()
	rep := models.NewReport(reportID, fileID, string(mode))
	rep.Status = models.ReportStatusRunning

	state := &ReportState{
		Report:       rep,
		LastAccessed: time.Now(),
		done:         make(chan struct{}),
	}

	m.mu.Lock()
	m.reports[reportID] = state
	m.mu.Unlock()

	go m.runReport(reportID, fileID, mode, state.done)

	snapshot := *rep
	return &snapshot, nil
}

func (m *Manager) runReport(reportID, fileID string, mode report.Mode, done chan struct{}) {
	defer close(done)
	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Report %s] PANIC recovered: %v\n", shortID(reportID), r)
			m.updateReportError(reportID, fmt.Sprintf("report panicked: %v", r))
		}
	}()

	start := time.Now()
	fmt.Printf("[Report %s] Building %s report for file %s\n", shortID(reportID), mode, shortID(fileID))

	events, err := m.cache.Get(fileID, m.loader.LoadEvents)
	if err != nil {
		fmt.Printf("[Report %s] ERROR: loading events: %v\n", shortID(reportID), err)
		m.updateReportError(reportID, fmt.Sprintf("loading events: %v", err))
		return
	}

	result, err := report.Build(events, mode)
	if err != nil {
		m.updateReportError(reportID, err.Error())
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.reports[reportID]
	if !ok {
		return
	}
	state.Result = result
	state.Report.Status = models.ReportStatusComplete
	state.Report.EventCount = len(events)
	state.Report.Rows = result.Rows
	state.Report.Sessions = result.Sessions
	state.Report.ProcessingTimeMs = time.Since(start).Milliseconds()

	fmt.Printf("[Report %s] Complete: %d rows in %dms\n", shortID(reportID), len(result.Rows), state.Report.ProcessingTimeMs)
}

func (m *Manager) updateReportError(reportID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.reports[reportID]
	if !ok {
		return
	}
	state.Report.Status = models.ReportStatusError
	state.Report.Error = reason
}

func finished(s models.ReportStatus) bool {
	return s == models.ReportStatusComplete || s == models.ReportStatusError
}

// cleanupOldReportsIfNeeded removes finished reports if at capacity
func (m *Manager) cleanupOldReportsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.reports) < MaxReports {
		return
	}

	// oldest access first
	var oldestID string
	var oldest time.Time
	for id, state := range m.reports {
		if !finished(state.Report.Status) {
			continue
		}
		if oldestID == "" || state.LastAccessed.Before(oldest) {
			oldestID, oldest = id, state.LastAccessed
		}
	}
	if oldestID != "" {
		delete(m.reports, oldestID)
		fmt.Printf("[Manager] Cleaned up old report %s to free memory\n", shortID(oldestID))
	}
}

// CleanupOldReports removes finished reports not accessed within maxAge.
// Reports read within ReportKeepAliveWindow are always kept.
func (m *Manager) CleanupOldReports(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-ReportKeepAliveWindow)
	if keepAliveCutoff.Before(cutoff) {
		cutoff = keepAliveCutoff
	}

	removed := 0
	for id, state := range m.reports {
		if !finished(state.Report.Status) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			delete(m.reports, id)
			removed++
			fmt.Printf("[Manager] Cleaned up aged report %s (last accessed: %s ago)\n",
				shortID(id), time.Since(state.LastAccessed).Round(time.Second))
		}
	}
	return removed
}

// RunCleanup calls CleanupOldReports every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupOldReports(maxAge)
		}
	}
}

// GetReport returns a copy of the report metadata and rows.
func (m *Manager) GetReport(id string) (*models.Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.reports[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Report
	return &snapshot, true
}

// GetResult returns the computed result of a completed report.
func (m *Manager) GetResult(id string) (*report.Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.reports[id]
	if !ok || state.Result == nil {
		return nil, false
	}
	return state.Result, true
}

// TouchReport updates the LastAccessed timestamp for a report.
func (m *Manager) TouchReport(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.reports[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Wait blocks until the report is finished or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*models.Report, error) {
	m.mu.RLock()
	state, ok := m.reports[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}

	select {
	case <-state.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// cleanup may have dropped it while we waited
	rep, ok := m.GetReport(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	return rep, nil
}

// InvalidateFile drops cached events of a deleted or replaced file.
func (m *Manager) InvalidateFile(fileID string) {
	m.cache.Invalidate(fileID)
}

// Stats returns statistics about reports and cached tables.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	count := len(m.reports)
	m.mu.RUnlock()

	stats := m.cache.Stats()
	stats["reports"] = count
	return stats
}
