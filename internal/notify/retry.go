package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Guizzs26/watch-crm/pkg/infra"
	"github.com/Guizzs26/watch-crm/pkg/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Retrier calls a Sender up to MaxAttempts times. After failed attempt n it
// waits BaseDelay * 2^n (2s, 4s, 8s with the defaults)
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *slog.Logger

	// sleep is swapped in tests to observe the backoff schedule
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrier(maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Retrier{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Logger:      logger,
		sleep:       infra.SleepWithContext,
	}
}

// SendWithRetry is the standalone form using the default base delay.
// maxAttempts <= 0 means DefaultMaxAttempts
func SendWithRetry(ctx context.Context, sender Sender, destination, body string, maxAttempts int) (*SendResult, error) {
	return NewRetrier(maxAttempts, DefaultBaseDelay, slog.Default()).Send(ctx, sender, destination, body)
}

// Send returns the first successful result without further waiting.
// When every attempt fails the error is a *RetryExhaustedError wrapping the last failure
func (r *Retrier) Send(ctx context.Context, sender Sender, destination, body string) (*SendResult, error) {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = infra.SleepWithContext
	}
	logger := r.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	l := logger.With("destination", destination)
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := sender.Send(ctx, destination, body)
		if err == nil {
			metrics.SendAttempts.WithLabelValues(providerOf(res, nil), "success").Inc()
			if attempt > 1 {
				l.Info("Send succeeded after retry", "attempt", attempt)
			}
			return res, nil
		}

		lastErr = err
		metrics.SendAttempts.WithLabelValues(providerOf(nil, err), "error").Inc()

		if attempt == attempts {
			break
		}

		wait := infra.Exponential(r.BaseDelay, attempt)
		l.Warn("Send attempt failed, backing off",
			"attempt", attempt,
			"max_attempts", attempts,
			"backoff", wait,
			"error", err,
		)

		if err := sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("retry aborted after attempt %d: %w", attempt, errors.Join(err, lastErr))
		}
	}

	l.Error("Send failed permanently", "attempts", attempts, "error", lastErr)
	return nil, &RetryExhaustedError{Attempts: attempts, Last: lastErr}
}

func providerOf(res *SendResult, err error) string {
	if res != nil && res.Provider != "" {
		return res.Provider
	}
	var sendErr *SendError
	if errors.As(err, &sendErr) && sendErr.Provider != "" {
		return sendErr.Provider
	}
	return "unknown"
}
