// Package cleanup runs named periodic jobs: reservation reaping, trip
// synthesis and arrival checks all share this loop.
package cleanup

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one pass of a periodic task. Errors are logged and the loop keeps
// going.
type Job func(ctx context.Context) error

type Service struct {
	name     string
	interval time.Duration
	job      Job
	timeout  time.Duration

	started  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewService creates a runner for job. Each pass gets a context bounded by
// interval so a stuck pass cannot pile up behind itself forever.
func NewService(name string, interval time.Duration, job Job) *Service {
	return &Service{
		name:     name,
		interval: interval,
		job:      job,
		timeout:  interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetPassTimeout overrides the per-pass deadline.
func (s *Service) SetPassTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// Start blocks until Stop is called or ctx is cancelled. Run it in its own
// goroutine.
func (s *Service) Start(ctx context.Context) {
	s.started.Store(true)
	defer close(s.done)
	log.Printf("Starting %s (interval: %v)", s.name, s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopChan:
			log.Printf("Stopping %s", s.name)
			return
		case <-ctx.Done():
			log.Printf("Stopping %s: %v", s.name, ctx.Err())
			return
		}
	}
}

// Stop ends the loop and waits for an in-flight pass to return. Safe to
// call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started.Load() {
		<-s.done
	}
}

func (s *Service) runOnce(ctx context.Context) {
	passCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.job(passCtx); err != nil {
		log.Printf("Error in %s: %v", s.name, err)
	}
}
