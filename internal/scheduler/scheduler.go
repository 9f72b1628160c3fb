// Package scheduler fires registered job triggers on fixed intervals. It has
// no business logic: triggers enqueue work and return immediately, so the
// scheduler never blocks on a running job.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Trigger enqueues one named job. Completion is observed via the job tracker,
// never by the scheduler.
type Trigger func(ctx context.Context) error

// Entry pairs a trigger with its firing interval.
type Entry struct {
	Name     string
	Interval time.Duration
	Trigger  Trigger
}

// Scheduler runs one ticker goroutine per entry.
type Scheduler struct {
	entries []Entry

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New builds a scheduler from the given entries.
func New(entries ...Entry) *Scheduler {
	return &Scheduler{entries: entries}
}

// Start begins ticking. Triggers fire first after one full interval, not at
// startup. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)

	for _, entry := range s.entries {
		s.wg.Add(1)
		go func(e Entry) {
			defer s.wg.Done()
			ticker := time.NewTicker(e.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := e.Trigger(ctx); err != nil {
						slog.Error("scheduled trigger failed", "name", e.Name, "error", err)
						continue
					}
					slog.Info("scheduled trigger fired", "name", e.Name)
				}
			}
		}(entry)
	}
}

// Stop halts all ticker goroutines and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
