package extract

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler starts an extraction job over fixed roots on a cron schedule.
// A tick is skipped while the previous scheduled job is still running.
type Scheduler struct {
	cron    *cron.Cron
	manager *Manager
	roots   []string
	entryID cron.EntryID

	mu      sync.Mutex
	lastJob string
}

// NewScheduler validates spec (standard five-field cron or a descriptor such
// as "@hourly") and registers the job without starting the clock.
func NewScheduler(manager *Manager, spec string, roots []string) (*Scheduler, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("scheduled extraction needs at least one root")
	}

	s := &Scheduler{
		cron:    cron.New(),
		manager: manager,
		roots:   roots,
	}
	id, err := s.cron.AddFunc(spec, func() { s.RunNow() })
	if err != nil {
		return nil, fmt.Errorf("invalid extract schedule %q: %w", spec, err)
	}
	s.entryID = id
	return s, nil
}

func (s *Scheduler) Start() {
	fmt.Printf("[Scheduler] Extracting %v, next run at %s\n", s.roots, s.Next().Format(time.RFC3339))
	s.cron.Start()
}

// Stop halts the clock. Jobs already started keep running in the manager.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	fmt.Println("[Scheduler] Stopped")
}

// Next returns the next scheduled run; zero before Start.
func (s *Scheduler) Next() time.Time {
	entry := s.cron.Entry(s.entryID)
	if entry.Next.IsZero() {
		return entry.Schedule.Next(time.Now())
	}
	return entry.Next
}

// RunNow starts a job immediately unless the previous one is unfinished. It
// returns the job, or nil when the run was skipped.
func (s *Scheduler) RunNow() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastJob != "" {
		if prev, ok := s.manager.GetJob(s.lastJob); ok && !Finished(prev.Status) {
			fmt.Printf("[Scheduler] Previous job %s still %s, skipping\n", shortID(prev.ID), prev.Status)
			return nil
		}
	}

	job := s.manager.StartJob(s.roots)
	s.lastJob = job.ID
	fmt.Printf("[Scheduler] Started job %s\n", shortID(job.ID))
	return job
}

// Finished reports whether status is terminal.
func Finished(status Status) bool {
	return status == StatusComplete || status == StatusError
}
