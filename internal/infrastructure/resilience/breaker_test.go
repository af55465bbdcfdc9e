package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDial = errors.New("dial failed")

func fail() error    { return errDial }
func succeed() error { return nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		attempts      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{Threshold: 2, Cooldown: time.Minute},
			attempts:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "success resets the failure streak",
			settings:      Settings{Threshold: 2, Cooldown: time.Minute},
			attempts:      []bool{false, true, false},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			settings:      Settings{Threshold: 3, Cooldown: time.Minute},
			attempts:      []bool{false, false, false},
			expectedState: StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("worker", tt.settings)
			for _, ok := range tt.attempts {
				if ok {
					_ = breaker.Do(succeed)
				} else {
					_ = breaker.Do(fail)
				}
			}
			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("worker", Settings{Threshold: 5, Cooldown: time.Minute})

	require.NoError(t, breaker.Do(succeed))
	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.Attempts)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)

	assert.ErrorIs(t, breaker.Do(fail), errDial)
	counts = breaker.Counts()
	assert.Equal(t, uint32(2), counts.Attempts)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Zero(t, counts.ConsecutiveSuccesses)
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	breaker := New("worker", Settings{Threshold: 2, Cooldown: time.Minute})
	_ = breaker.Do(fail)
	_ = breaker.Do(fail)

	called := false
	err := breaker.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Greater(t, breaker.RetryAfter(), 50*time.Second)
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	var transitions []State
	breaker := New("worker", Settings{
		Threshold: 1,
		Cooldown:  20 * time.Millisecond,
		OnStateChange: func(_ string, _, to State) {
			transitions = append(transitions, to)
		},
	})

	_ = breaker.Do(fail)
	assert.Equal(t, StateOpen, breaker.State())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())
	assert.Zero(t, breaker.RetryAfter())

	require.NoError(t, breaker.Do(succeed))
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	breaker := New("worker", Settings{Threshold: 1, Cooldown: 20 * time.Millisecond})
	_ = breaker.Do(fail)
	time.Sleep(30 * time.Millisecond)

	assert.ErrorIs(t, breaker.Do(fail), errDial)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerLimitsTrials(t *testing.T) {
	breaker := New("worker", Settings{Threshold: 1, Trials: 1, Cooldown: 20 * time.Millisecond})
	_ = breaker.Do(fail)
	time.Sleep(30 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = breaker.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, breaker.Do(succeed), ErrTooManyRequests)
	close(release)
	require.Eventually(t, func() bool { return breaker.State() == StateClosed }, time.Second, time.Millisecond)
}

func TestExecuteReturnsValue(t *testing.T) {
	breaker := New("worker", Settings{})
	v, err := Execute(breaker, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestBreakerRecordsPanicAsFailure(t *testing.T) {
	breaker := New("worker", Settings{Threshold: 1, Cooldown: time.Minute})
	assert.Panics(t, func() {
		_ = breaker.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := &Backoff{Min: time.Second, Max: 30 * time.Second, Multiplier: 2}

	var waits []time.Duration
	for i := 0; i < 7; i++ {
		waits = append(waits, b.Next())
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}, waits)

	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	b := DefaultBackoff()
	for i := 0; i < 20; i++ {
		wait := b.Next()
		assert.GreaterOrEqual(t, wait, 900*time.Millisecond)
		assert.LessOrEqual(t, wait, 33*time.Second)
	}
}
