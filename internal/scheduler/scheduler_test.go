package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/monitoring"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestBoundNeverExceeded(t *testing.T) {
	const bound = 3
	s := New(Options{MaxConcurrent: bound})

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		s.Submit(func() {
			defer wg.Done()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
		})
		inflight, _ := s.Stats()
		assert.LessOrEqual(t, inflight, bound)
	}
	wg.Wait()

	assert.LessOrEqual(t, int(peak.Load()), bound)
	assert.Equal(t, int32(bound), peak.Load())
	waitFor(t, func() bool {
		inflight, queued := s.Stats()
		return inflight == 0 && queued == 0
	})
}

func TestAdmissionIsFIFO(t *testing.T) {
	s := New(Options{MaxConcurrent: 1})

	release := make(chan struct{})
	var mu sync.Mutex
	var order []int

	s.Submit(func() { <-release })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		s.Submit(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	inflight, queued := s.Stats()
	assert.Equal(t, 1, inflight)
	assert.Equal(t, 10, queued)

	close(release)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestUnboundedStartsImmediately(t *testing.T) {
	s := New(Options{MaxConcurrent: Unbounded})

	release := make(chan struct{})
	var started atomic.Int32
	for i := 0; i < 50; i++ {
		s.Submit(func() {
			started.Add(1)
			<-release
		})
	}

	waitFor(t, func() bool { return started.Load() == 50 })
	_, queued := s.Stats()
	assert.Zero(t, queued)
	close(release)
}

func TestUnboundedAdmitsBeforeSubmitReturns(t *testing.T) {
	s := New(Options{MaxConcurrent: Unbounded})

	release := make(chan struct{})
	defer close(release)
	s.Submit(func() { <-release })

	inflight, queued := s.Stats()
	assert.Equal(t, 1, inflight)
	assert.Zero(t, queued)
}

func TestNegativeBoundIsUnbounded(t *testing.T) {
	s := New(Options{MaxConcurrent: -4})
	assert.Equal(t, Unbounded, s.maxConcurrent)
}

func TestDelayPostponesStart(t *testing.T) {
	s := New(Options{MaxConcurrent: 2, Delay: 40 * time.Millisecond})

	start := time.Now()
	done := make(chan time.Duration, 1)
	s.Submit(func() { done <- time.Since(start) })

	select {
	case elapsed := <-done:
		assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestCompletionFreesSlot(t *testing.T) {
	s := New(Options{MaxConcurrent: 1})

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		s.Submit(func() { ran.Add(1) })
	}
	waitFor(t, func() bool { return ran.Load() == 5 })
}

func TestMetricsTrackQueue(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	s := New(Options{MaxConcurrent: 1, Metrics: metrics})

	release := make(chan struct{})
	s.Submit(func() { <-release })
	s.Submit(func() {})

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SchedulerInflight))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SchedulerQueued))

	close(release)
	waitFor(t, func() bool { return testutil.ToFloat64(metrics.SchedulerAdmitted) == 2 })
	waitFor(t, func() bool { return testutil.ToFloat64(metrics.SchedulerInflight) == 0 })
}

func TestRateLimitSpacesAdmissions(t *testing.T) {
	s := New(Options{MaxConcurrent: 4, RateLimit: 20})

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		s.Submit(wg.Done)
	}
	wg.Wait()

	// burst of 20, then 5 more at 20/s
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestRunReturnsOutcome(t *testing.T) {
	s := New(Options{MaxConcurrent: 2})

	v, err := Run(context.Background(), s, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestRunAbandonsQueuedCall(t *testing.T) {
	s := New(Options{MaxConcurrent: 1})

	release := make(chan struct{})
	s.Submit(func() { <-release })

	ctx, cancel := context.WithCancel(context.Background())
	var called atomic.Bool
	errCh := make(chan error, 1)
	go func() {
		_, err := Run(ctx, s, func(ctx context.Context) (int, error) {
			called.Store(true)
			return 1, nil
		})
		errCh <- err
	}()

	waitFor(t, func() bool {
		_, queued := s.Stats()
		return queued == 1
	})
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	waitFor(t, func() bool {
		inflight, queued := s.Stats()
		return inflight == 0 && queued == 0
	})
	assert.False(t, called.Load())
}

func TestRunWaitsForAdmittedCall(t *testing.T) {
	s := New(Options{MaxConcurrent: 1})

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})

	result := make(chan int, 1)
	go func() {
		v, _ := Run(ctx, s, func(callCtx context.Context) (int, error) {
			close(started)
			<-release
			assert.NoError(t, callCtx.Err())
			return 7, nil
		})
		result <- v
	}()

	<-started
	cancel()
	close(release)
	assert.Equal(t, 7, <-result)
}
