package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Guizzs26/watch-crm/internal/db"
	"github.com/Guizzs26/watch-crm/internal/models"
	"github.com/Guizzs26/watch-crm/pkg/infra"
	"github.com/Guizzs26/watch-crm/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys accepted on the intake exchange
const (
	RouteNotifyPrefix = "notify."
	RouteInquiry      = "intake.inquiry"
	RouteSellRequest  = "intake.sell"
	RouteWatchSold    = "catalog.watch.sold"
)

var intakeBindings = []string{"notify.#", "intake.#", "catalog.#"}

const storageRetryDelay = 5 * time.Second

var errMalformed = errors.New("malformed payload")

// Dispatcher accepts a notification request for throttled delivery.
// It must return quickly; delivery itself happens later
type Dispatcher interface {
	Dispatch(ctx context.Context, req models.NotificationRequest) error
}

// IntakeHandler records storefront submissions
type IntakeHandler interface {
	SubmitInquiry(ctx context.Context, in models.Inquiry) (models.Inquiry, error)
	SubmitSellRequest(ctx context.Context, in models.SellSubmission) (models.SellSubmission, error)
}

// CatalogHandler applies storefront sale events
type CatalogHandler interface {
	MarkSold(ctx context.Context, id int64) (models.Watch, error)
}

// Handlers routes each message family. Intake and Catalog are optional;
// their routing keys are rejected when unset
type Handlers struct {
	Notifications Dispatcher
	Intake        IntakeHandler
	Catalog       CatalogHandler
}

// IntakeConsumer reads storefront and notification messages from a durable queue
type IntakeConsumer struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	handlers   Handlers
	logger     *slog.Logger
	queue      string
	retryDelay time.Duration
}

func NewIntakeConsumer(url, queue string, h Handlers, logger *slog.Logger) (*IntakeConsumer, error) {
	if h.Notifications == nil {
		return nil, errors.New("intake consumer needs a notification dispatcher")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Prefetch 1 keeps requests in publish order
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &IntakeConsumer{
		conn:       conn,
		channel:    ch,
		handlers:   h,
		logger:     logger.With("component", "intake_consumer"),
		queue:      queue,
		retryDelay: storageRetryDelay,
	}, nil
}

// Listen declares and binds the intake queue, then consumes until ctx is done or the channel closes
func (c *IntakeConsumer) Listen(ctx context.Context) error {
	if err := c.channel.ExchangeDeclare(IntakeExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare intake exchange: %w", err)
	}

	q, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range intakeBindings {
		if err := c.channel.QueueBind(q.Name, key, IntakeExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	msgs, err := c.channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	markOffline := c.markOnline()
	defer markOffline()

	c.logger.Info("Consumer is online and waiting for intake messages", "queue", q.Name, "bindings", intakeBindings)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// markOnline flags the intake link healthy until the returned func runs
func (c *IntakeConsumer) markOnline() func() {
	health := metrics.HealthStatus.WithLabelValues("intake")
	health.Set(1)
	return func() { health.Set(0) }
}

// handle acks once the message is handed off. Malformed, unroutable or rejected
// messages are dropped without requeue. Storage failures and a shutdown in
// progress put the message back
func (c *IntakeConsumer) handle(ctx context.Context, d amqp.Delivery) {
	l := c.logger.With("delivery_tag", d.DeliveryTag, "message_id", d.MessageId, "routing_key", d.RoutingKey)

	run, ok := c.route(d.RoutingKey)
	if !ok {
		metrics.IntakeMessages.WithLabelValues("unroutable").Inc()
		l.Error("No handler for routing key, dropping message")
		_ = d.Nack(false, false)
		return
	}

	err := run(ctx, d.Body)
	switch {
	case err == nil:
		metrics.IntakeMessages.WithLabelValues("handled").Inc()
		if err := d.Ack(false); err != nil {
			l.Error("Failed to Ack message", "error", err)
		}
	case errors.Is(err, errMalformed):
		metrics.IntakeMessages.WithLabelValues("malformed").Inc()
		l.Error("Failed to unmarshal intake message", "error", err)
		_ = d.Nack(false, false)
	case ctx.Err() != nil:
		l.Warn("Shutdown during dispatch, requeueing", "error", err)
		_ = d.Nack(false, true)
	case isTransient(err):
		metrics.IntakeMessages.WithLabelValues("requeued").Inc()
		l.Error("Storage failure, requeueing", "retry_in", c.retryDelay, "error", err)
		// Throttling retries
		_ = infra.SleepWithContext(ctx, c.retryDelay)
		_ = d.Nack(false, true)
	default:
		metrics.IntakeMessages.WithLabelValues("rejected").Inc()
		l.Error("Intake message rejected", "error", err)
		_ = d.Nack(false, false)
	}
}

func (c *IntakeConsumer) route(key string) (func(context.Context, []byte) error, bool) {
	h := c.handlers
	switch {
	case strings.HasPrefix(key, RouteNotifyPrefix):
		return decoded(func(ctx context.Context, req models.NotificationRequest) error {
			req.Destination = strings.TrimSpace(req.Destination)
			return h.Notifications.Dispatch(ctx, req)
		}), true
	case key == RouteInquiry && h.Intake != nil:
		return decoded(func(ctx context.Context, in models.Inquiry) error {
			_, err := h.Intake.SubmitInquiry(ctx, in)
			return err
		}), true
	case key == RouteSellRequest && h.Intake != nil:
		return decoded(func(ctx context.Context, in models.SellSubmission) error {
			_, err := h.Intake.SubmitSellRequest(ctx, in)
			return err
		}), true
	case key == RouteWatchSold && h.Catalog != nil:
		return decoded(func(ctx context.Context, ev models.WatchSoldEvent) error {
			if ev.WatchID <= 0 {
				return fmt.Errorf("%w: watch_id is required", errMalformed)
			}
			_, err := h.Catalog.MarkSold(ctx, ev.WatchID)
			return err
		}), true
	}
	return nil, false
}

func decoded[T any](fn func(context.Context, T) error) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		var msg T
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: %v", errMalformed, err)
		}
		return fn(ctx, msg)
	}
}

// isTransient is true for storage failures other than constraint violations
func isTransient(err error) bool {
	var storageErr *db.StorageError
	return errors.As(err, &storageErr) && !db.IsConstraintViolation(err)
}

// Close terminates the channel and connection
func (c *IntakeConsumer) Close() {
	c.logger.Info("Shutting down RabbitMQ consumer")
	c.channel.Close()
	c.conn.Close()
}
