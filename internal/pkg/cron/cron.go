// Package cron runs named background jobs on fixed intervals.
package cron

import (
	"context"
	"sync"
	"time"
)

// Job is a periodic background task. Fn runs on every Interval tick; a tick
// that arrives while the previous run is still going is skipped, so slow
// jobs never overlap themselves. Jobs are expected to log their own
// failures.
type Job struct {
	Name        string
	Description string
	Interval    time.Duration
	Fn          func(ctx context.Context) error
}

type jobState struct {
	Job
	mu      sync.Mutex
	running bool
}

// Scheduler runs registered jobs until its context is cancelled.
type Scheduler struct {
	mu   sync.Mutex
	jobs []*jobState
}

func New() *Scheduler {
	return &Scheduler{}
}

// Register adds a job. Register everything before calling Start.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &jobState{Job: job})
}

// Start launches one goroutine per job. The first run happens a full
// interval after start, not immediately, so a crash-looping process does
// not hammer its jobs on every restart.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, js := range s.jobs {
		go s.runLoop(ctx, js)
	}
}

func (s *Scheduler) runLoop(ctx context.Context, js *jobState) {
	ticker := time.NewTicker(js.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, js)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, js *jobState) {
	js.mu.Lock()
	if js.running {
		js.mu.Unlock()
		return
	}
	js.running = true
	js.mu.Unlock()

	defer func() {
		js.mu.Lock()
		js.running = false
		js.mu.Unlock()
	}()

	_ = js.Fn(ctx)
}
