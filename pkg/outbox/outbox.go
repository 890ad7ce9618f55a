// Package outbox runs fire-and-forget side effects (push notifications and
// the like) off the request path, with bounded retries.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

var (
	ErrQueueFull = errors.New("outbox queue is full")
	ErrStopped   = errors.New("outbox is stopped")
)

// Task is one unit of outbound work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

type Stats struct {
	Enqueued        int64     `json:"enqueued"`
	Processed       int64     `json:"processed"`
	Failed          int64     `json:"failed"`
	Dropped         int64     `json:"dropped"`
	Retries         int64     `json:"retries"`
	LastProcessedAt time.Time `json:"lastProcessedAt"`
}

type Outbox struct {
	config Config
	tasks  chan Task

	ctx      context.Context
	cancel   context.CancelFunc
	workerWg sync.WaitGroup
	stopOnce sync.Once

	stats    Stats
	statsMux sync.RWMutex
}

func New(config Config) *Outbox {
	ctx, cancel := context.WithCancel(context.Background())
	return &Outbox{
		config: config,
		tasks:  make(chan Task, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue never blocks; a full queue drops the task.
func (o *Outbox) Enqueue(task Task) error {
	if o.ctx.Err() != nil {
		return ErrStopped
	}
	select {
	case o.tasks <- task:
		o.bump(func(s *Stats) { s.Enqueued++ })
		return nil
	default:
		o.bump(func(s *Stats) { s.Dropped++ })
		return fmt.Errorf("%w, dropping %s", ErrQueueFull, task.Name)
	}
}

func (o *Outbox) Start() {
	for i := 0; i < o.config.Workers; i++ {
		o.workerWg.Add(1)
		go o.worker()
	}
	log.Printf("Outbox started with %d workers", o.config.Workers)
}

// Stop lets workers finish what is already queued, then returns.
func (o *Outbox) Stop() {
	o.stopOnce.Do(func() {
		o.cancel()
		o.workerWg.Wait()
		log.Println("Outbox stopped")
	})
}

func (o *Outbox) worker() {
	defer o.workerWg.Done()
	for {
		select {
		case task := <-o.tasks:
			o.process(task)
		case <-o.ctx.Done():
			o.drain()
			return
		}
	}
}

func (o *Outbox) drain() {
	for {
		select {
		case task := <-o.tasks:
			o.process(task)
		default:
			return
		}
	}
}

func (o *Outbox) process(task Task) {
	err := o.runWithRetry(task)
	o.bump(func(s *Stats) {
		s.Processed++
		s.LastProcessedAt = time.Now()
		if err != nil {
			s.Failed++
		}
	})
	if err != nil {
		log.Printf("Outbox task %s failed: %v", task.Name, err)
	}
}

func (o *Outbox) runWithRetry(task Task) error {
	var err error
	for attempt := 0; attempt <= o.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * o.config.RetryBackoff
			log.Printf("Retrying outbox task %s after %v (attempt %d/%d)", task.Name, backoff, attempt, o.config.RetryAttempts)
			o.bump(func(s *Stats) { s.Retries++ })

			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-o.ctx.Done():
				// shutting down: one last try, no more waiting
				timer.Stop()
				return o.runOnce(task)
			}
		}

		if err = o.runOnce(task); err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}
	return err
}

func (o *Outbox) runOnce(task Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), o.config.TaskTimeout)
	defer cancel()
	return task.Run(ctx)
}

func (o *Outbox) GetStats() Stats {
	o.statsMux.RLock()
	defer o.statsMux.RUnlock()
	return o.stats
}

func (o *Outbox) bump(fn func(*Stats)) {
	o.statsMux.Lock()
	fn(&o.stats)
	o.statsMux.Unlock()
}
