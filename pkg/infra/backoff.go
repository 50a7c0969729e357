package infra

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	defaultJitter = 0.2
	maxShift      = 62
)

// Backoff is a stateful exponential delay generator used for reconnect loops
type Backoff struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	multiplier float64
	jitter     float64
	current    time.Duration
	attempts   int
	mu         sync.Mutex
}

type BackoffOption func(*Backoff)

// WithJitter sets the +/- fraction applied around each delay. Zero disables jitter
func WithJitter(fraction float64) BackoffOption {
	return func(b *Backoff) {
		b.jitter = math.Max(0, math.Min(fraction, 1))
	}
}

func NewBackoff(min, max time.Duration, mult float64, opts ...BackoffOption) *Backoff {
	b := &Backoff{
		minDelay:   min,
		maxDelay:   max,
		multiplier: mult,
		jitter:     defaultJitter,
		current:    min,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++

	wait := b.current
	if b.jitter > 0 {
		jitterFactor := rand.Float64()*2*b.jitter - b.jitter
		wait = max(b.current+time.Duration(jitterFactor*float64(b.current)), b.minDelay)
	}

	b.current = min(time.Duration(float64(b.current)*b.multiplier), b.maxDelay)

	return wait
}

func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.minDelay
	b.attempts = 0
}

func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Exponential returns base * 2^attempt, saturating instead of overflowing.
// Negative attempts are treated as 0.
func Exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	multiplier := int64(1) << attempt
	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(int64(base) * multiplier)
}

// SleepWithContext waits for d or until ctx is done, whichever comes first
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
