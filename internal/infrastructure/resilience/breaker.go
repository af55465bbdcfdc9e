package resilience

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker.
type Settings struct {
	// Trials is the number of attempts let through while half-open.
	Trials uint32
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold uint32
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// OnStateChange is called with the breaker lock released.
	OnStateChange func(name string, from, to State)
	Logger        *logging.Logger
}

// Counts holds attempt statistics since the last state change.
type Counts struct {
	Attempts             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker stops hammering an unreachable worker. After Threshold
// consecutive dial failures it rejects attempts for Cooldown, then lets
// Trials attempts through to decide whether to close again.
type Breaker struct {
	name     string
	settings Settings
	logger   *logging.Logger

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	gen      uint64
}

// New creates a closed breaker.
func New(name string, settings Settings) *Breaker {
	if settings.Trials == 0 {
		settings.Trials = 1
	}
	if settings.Threshold == 0 {
		settings.Threshold = 5
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:     name,
		settings: settings,
		logger:   logging.OrNop(settings.Logger).Named("breaker").With(zap.String("breaker", name)),
	}
}

func (b *Breaker) Name() string { return b.name }

// State returns the current state, moving open to half-open once the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	state, _, change := b.currentLocked(time.Now())
	b.mu.Unlock()
	b.notify(change)
	return state
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// RetryAfter reports how long until an open breaker starts probing.
// It is zero unless the breaker is open.
func (b *Breaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return 0
	}
	left := time.Until(b.openedAt.Add(b.settings.Cooldown))
	if left < 0 {
		return 0
	}
	return left
}

// Do runs fn if the breaker admits it and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	_, err := Execute(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Execute runs fn through b and returns its result.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	gen, err := b.before()
	if err != nil {
		return zero, err
	}

	defer func() {
		if e := recover(); e != nil {
			b.after(gen, false)
			panic(e)
		}
	}()

	v, err := fn()
	b.after(gen, err == nil)
	return v, err
}

type transition struct {
	from, to State
}

func (b *Breaker) before() (uint64, error) {
	b.mu.Lock()
	state, gen, change := b.currentLocked(time.Now())
	var err error
	switch {
	case state == StateOpen:
		err = ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Attempts >= b.settings.Trials:
		err = ErrTooManyRequests
	default:
		b.counts.Attempts++
	}
	b.mu.Unlock()
	b.notify(change)
	return gen, err
}

func (b *Breaker) after(gen uint64, success bool) {
	b.mu.Lock()
	now := time.Now()
	state, current, change := b.currentLocked(now)
	if current != gen {
		b.mu.Unlock()
		b.notify(change)
		return
	}

	if success {
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.Trials {
			change = b.setLocked(StateClosed, now)
		}
	} else {
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if state == StateHalfOpen || b.counts.ConsecutiveFailures >= b.settings.Threshold {
			change = b.setLocked(StateOpen, now)
		}
	}
	b.mu.Unlock()
	b.notify(change)
}

func (b *Breaker) currentLocked(now time.Time) (State, uint64, *transition) {
	var change *transition
	if b.state == StateOpen && !now.Before(b.openedAt.Add(b.settings.Cooldown)) {
		change = b.setLocked(StateHalfOpen, now)
	}
	return b.state, b.gen, change
}

func (b *Breaker) setLocked(state State, now time.Time) *transition {
	if b.state == state {
		return nil
	}
	prev := b.state
	b.state = state
	b.counts = Counts{}
	b.gen++
	if state == StateOpen {
		b.openedAt = now
	}
	return &transition{from: prev, to: state}
}

func (b *Breaker) notify(change *transition) {
	if change == nil {
		return
	}
	b.logger.Info("Breaker state changed",
		zap.Stringer("from", change.from),
		zap.Stringer("to", change.to))
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, change.from, change.to)
	}
}
