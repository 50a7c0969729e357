package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Guizzs26/watch-crm/internal/broker"
	"github.com/Guizzs26/watch-crm/internal/db"
	"github.com/Guizzs26/watch-crm/internal/models"
	"github.com/Guizzs26/watch-crm/internal/notify"
	"github.com/Guizzs26/watch-crm/pkg/infra"
	"github.com/google/uuid"
)

var ErrInvalidNotification = errors.New("invalid notification request")

// JobQueue is satisfied by *notify.Queue
type JobQueue interface {
	Enqueue(job notify.Job) string
}

// BulkResult is the outcome of one request in BulkSend. Exactly one of Result and Err is set
type BulkResult struct {
	Request models.NotificationRequest
	Result  *notify.SendResult
	Err     error
}

// NotificationService sends customer and admin messages through the throttled queue
// and keeps a delivery log in notification_log. RecordResult must be registered
// as the queue's result hook
type NotificationService struct {
	store   DataStore
	queue   JobQueue
	sender  notify.Sender
	retrier *notify.Retrier
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[string]models.NotificationRequest
}

var _ broker.Dispatcher = (*NotificationService)(nil)

func NewNotificationService(s DataStore, q JobQueue, sender notify.Sender, r *notify.Retrier, l *slog.Logger) *NotificationService {
	if l == nil {
		l = infra.NopLogger()
	}
	if r == nil {
		r = notify.NewRetrier(notify.DefaultMaxAttempts, notify.DefaultBaseDelay, l)
	}
	return &NotificationService{
		store:    s,
		queue:    q,
		sender:   sender,
		retrier:  r,
		logger:   l.With("service", "notifier"),
		inflight: make(map[string]models.NotificationRequest),
	}
}

// Notify validates req and enqueues a retried send. It returns as soon as the job is queued
func (s *NotificationService) Notify(ctx context.Context, req models.NotificationRequest) (string, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	logCtx := context.WithoutCancel(ctx)

	job := notify.RetryJob(ctx, "notify "+req.Destination, s.retrier, s.sender, req.Destination, req.Body,
		func(res *notify.SendResult) error {
			s.recordSuccess(logCtx, jobID, req, res)
			return nil
		})
	job.ID = jobID

	// registered before Enqueue so the result hook can never miss it
	s.mu.Lock()
	s.inflight[jobID] = req
	s.mu.Unlock()

	s.queue.Enqueue(job)
	s.logger.Info("Notification queued", "job_id", jobID, "destination", req.Destination, "reference", req.Reference)
	return jobID, nil
}

// Dispatch satisfies broker.Dispatcher
func (s *NotificationService) Dispatch(ctx context.Context, req models.NotificationRequest) error {
	_, err := s.Notify(ctx, req)
	return err
}

// SendNow sends synchronously with retry, bypassing the queue and its rate limit
func (s *NotificationService) SendNow(ctx context.Context, req models.NotificationRequest) (*notify.SendResult, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	logCtx := context.WithoutCancel(ctx)

	res, err := s.retrier.Send(ctx, s.sender, req.Destination, req.Body)
	if err != nil {
		s.recordFailure(logCtx, jobID, req, err)
		return nil, err
	}
	s.recordSuccess(logCtx, jobID, req, res)
	return res, nil
}

// BulkSend sends every request in order, one at a time. Once ctx is done the
// remaining requests are reported with the context error and not attempted
func (s *NotificationService) BulkSend(ctx context.Context, reqs []models.NotificationRequest) []BulkResult {
	out := make([]BulkResult, 0, len(reqs))
	sent := 0

	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			out = append(out, BulkResult{Request: req, Err: err})
			continue
		}
		res, err := s.SendNow(ctx, req)
		if err == nil {
			sent++
		}
		out = append(out, BulkResult{Request: req, Result: res, Err: err})
	}

	s.logger.Info("Bulk send finished", "total", len(reqs), "sent", sent, "failed", len(reqs)-sent)
	return out
}

// RecordResult is the queue result hook. Failed jobs get a notification_log row
// with the error text; successful ones were already logged by the job itself
func (s *NotificationService) RecordResult(res notify.JobResult) {
	s.mu.Lock()
	req, ok := s.inflight[res.JobID]
	delete(s.inflight, res.JobID)
	s.mu.Unlock()

	if !ok || res.Err == nil {
		return
	}
	s.recordFailure(context.Background(), res.JobID, req, res.Err)
}

// a log write failure never turns a delivered message into a failed one
func (s *NotificationService) recordSuccess(ctx context.Context, jobID string, req models.NotificationRequest, res *notify.SendResult) {
	_, err := s.store.Insert(ctx, models.TableNotificationLog, db.Row{
		"job_id":      jobID,
		"destination": req.Destination,
		"provider":    optional(res.Provider),
		"message_id":  optional(res.MessageID),
		"status":      res.Status,
		"reference":   optional(req.Reference),
	})
	if err != nil {
		s.logger.Error("Failed to record delivered notification", "job_id", jobID, "message_id", res.MessageID, "error", err)
	}
}

func (s *NotificationService) recordFailure(ctx context.Context, jobID string, req models.NotificationRequest, cause error) {
	provider := ""
	var sendErr *notify.SendError
	if errors.As(cause, &sendErr) {
		provider = sendErr.Provider
	}

	_, err := s.store.Insert(ctx, models.TableNotificationLog, db.Row{
		"job_id":      jobID,
		"destination": req.Destination,
		"provider":    optional(provider),
		"status":      string(models.DeliveryFailed),
		"error":       cause.Error(),
		"reference":   optional(req.Reference),
	})
	if err != nil {
		s.logger.Error("Failed to record notification failure", "job_id", jobID, "error", err)
	}
}

func normalizeRequest(req models.NotificationRequest) (models.NotificationRequest, error) {
	req.Destination = strings.TrimSpace(req.Destination)
	switch {
	case req.Destination == "":
		return req, fmt.Errorf("%w: destination is required", ErrInvalidNotification)
	case strings.TrimSpace(req.Body) == "":
		return req, fmt.Errorf("%w: body is required", ErrInvalidNotification)
	}
	return req, nil
}
