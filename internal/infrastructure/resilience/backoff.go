package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff produces exponentially growing waits between reconnect attempts.
// It is not safe for concurrent use.
type Backoff struct {
	Min        time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter spreads each wait by up to this fraction in either direction.
	Jitter float64

	attempt int
}

// DefaultBackoff waits 1s, doubling up to 30s.
func DefaultBackoff() *Backoff {
	return &Backoff{
		Min:        time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.1,
	}
}

// Next returns the wait before the next attempt and advances the sequence.
func (b *Backoff) Next() time.Duration {
	mult := b.Multiplier
	if mult < 1 {
		mult = 2
	}
	wait := float64(b.Min) * math.Pow(mult, float64(b.attempt))
	if b.Max > 0 && wait > float64(b.Max) {
		wait = float64(b.Max)
	} else {
		b.attempt++
	}

	if b.Jitter > 0 {
		wait += wait * b.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}

// Attempts returns how many waits have grown the sequence.
func (b *Backoff) Attempts() int { return b.attempt }

// Reset starts the sequence over, typically after a successful connect.
func (b *Backoff) Reset() { b.attempt = 0 }
