// Package scheduler bounds and orders the calls the bridge sends to the
// worker.
//
// Requests are admitted strictly in submission order. Completion order is
// not constrained: a fast call admitted late may finish before a slow one
// admitted early.
package scheduler

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/monitoring"
)

// Unbounded disables queueing. Submit admits the task and counts it in
// flight before returning, then runs it on its own goroutine: a Task blocks
// until its call completes, so running it on the caller's goroutine would
// block the caller.
const Unbounded = 0

// Task performs exactly one worker call and returns once its result is
// available. The scheduler never looks at the outcome.
type Task func()

// Options configures a Scheduler.
type Options struct {
	// MaxConcurrent bounds in-flight tasks. Unbounded (0) disables the queue.
	MaxConcurrent int
	// Delay is an artificial pause before each admitted task starts.
	Delay time.Duration
	// RateLimit caps admissions per second; 0 disables it.
	RateLimit float64

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Scheduler is a FIFO admission queue with a concurrency bound. All mutable
// state is guarded by one mutex.
type Scheduler struct {
	maxConcurrent int
	delay         time.Duration
	limiter       *rate.Limiter
	logger        *logging.Logger
	metrics       *monitoring.Metrics

	mu       sync.Mutex
	queue    []Task
	inflight int
	admitted uint64
}

// New creates a scheduler. Negative bounds are treated as Unbounded.
func New(opts Options) *Scheduler {
	s := &Scheduler{
		maxConcurrent: opts.MaxConcurrent,
		delay:         opts.Delay,
		logger:        logging.OrNop(opts.Logger).Named("scheduler"),
		metrics:       opts.Metrics,
	}
	if s.maxConcurrent < 0 {
		s.maxConcurrent = Unbounded
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

// Submit hands task to the scheduler. It never blocks. Admission happens
// before Submit returns, so tasks are admitted in the order Submit is
// called.
func (s *Scheduler) Submit(task Task) {
	if s.maxConcurrent == Unbounded {
		s.mu.Lock()
		s.inflight++
		s.admitted++
		s.recordLocked()
		s.mu.Unlock()
		s.metrics.IncAdmitted()

		go s.run(task, s.reserve())
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, task)
	s.pumpLocked()
	s.recordLocked()
	s.mu.Unlock()
}

// Stats returns the current in-flight and queued counts.
func (s *Scheduler) Stats() (inflight, queued int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight, len(s.queue)
}

// pumpLocked admits queued tasks while capacity remains.
func (s *Scheduler) pumpLocked() {
	for len(s.queue) > 0 && s.inflight < s.maxConcurrent {
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]

		s.inflight++
		s.admitted++
		s.metrics.IncAdmitted()

		wait := s.delay + s.reserve()
		if wait > 0 {
			s.logger.Debug("Delaying admitted call", zap.Duration("delay", wait), zap.Uint64("seq", s.admitted))
		}
		go s.run(task, wait)
	}
}

// reserve takes a rate-limit token in admission order and returns how long
// the task must wait for it.
func (s *Scheduler) reserve() time.Duration {
	if s.limiter == nil {
		return 0
	}
	return s.limiter.Reserve().Delay()
}

func (s *Scheduler) run(task Task, wait time.Duration) {
	defer s.done()
	if wait > 0 {
		time.Sleep(wait)
	}
	task()
}

func (s *Scheduler) done() {
	s.mu.Lock()
	s.inflight--
	if s.maxConcurrent != Unbounded {
		s.pumpLocked()
	}
	s.recordLocked()
	s.mu.Unlock()
}

func (s *Scheduler) recordLocked() {
	s.metrics.SetScheduler(s.inflight, len(s.queue))
}
