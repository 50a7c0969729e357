package notify

import (
	"context"
	"fmt"
	"time"
)

// Sender is the outbound messaging provider port
type Sender interface {
	Send(ctx context.Context, destination, body string) (*SendResult, error)
}

// SenderFunc adapts a plain function to Sender
type SenderFunc func(ctx context.Context, destination, body string) (*SendResult, error)

func (f SenderFunc) Send(ctx context.Context, destination, body string) (*SendResult, error) {
	return f(ctx, destination, body)
}

// SendResult is what a provider reports for one accepted message. Persisting it is the caller's job
type SendResult struct {
	MessageID string    `json:"message_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
}

// SendError describes a single failed provider attempt
type SendError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *SendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s send failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s send failed: %v", e.Provider, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// RetryExhaustedError is returned once every attempt of SendWithRetry failed
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("send failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}
