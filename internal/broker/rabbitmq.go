package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Guizzs26/watch-crm/internal/models"
	"github.com/Guizzs26/watch-crm/internal/notify"
	"github.com/Guizzs26/watch-crm/pkg/metrics"
	"github.com/google/uuid"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	OutboundExchange = "watchcrm.outbound"
	IntakeExchange   = "watchcrm.intake"

	ProviderName   = "amqp"
	confirmTimeout = 10 * time.Second
)

var ErrBrokerClosed = errors.New("broker connection is closed")

// Publisher hands outbound messages to a downstream gateway through a topic exchange.
// The routing key is the destination, so gateways can bind per channel
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	pubMu      sync.Mutex
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

var _ notify.Sender = (*Publisher)(nil)

// NewPublisher dials the broker, declares the outbound exchange and enables Publisher Confirms
func NewPublisher(url string, l *slog.Logger) (*Publisher, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := ch.ExchangeDeclare(OutboundExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to declare outbound exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate Publisher Confirms: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		conn:       c,
		channel:    ch,
		logger:     l.With("component", "publisher"),
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	p.healthy.Store(true)
	metrics.HealthStatus.WithLabelValues("publisher").Set(1)

	p.conn.NotifyClose(p.connClosed)
	p.channel.NotifyClose(p.chanClosed)

	go p.monitor()

	p.logger.Info("Connected to RabbitMQ, outbound exchange ready", "exchange", OutboundExchange)
	return p, nil
}

func (p *Publisher) monitor() {
	select {
	case err := <-p.connClosed:
		p.healthy.Store(false)
		metrics.HealthStatus.WithLabelValues("publisher").Set(0)
		p.logger.Warn("RabbitMQ connection closed", "error", err)
	case err := <-p.chanClosed:
		p.healthy.Store(false)
		metrics.HealthStatus.WithLabelValues("publisher").Set(0)
		p.logger.Warn("RabbitMQ channel closed", "error", err)
	case <-p.ctx.Done():
	}
}

// Send publishes one message and blocks until the broker confirms it.
// A broker ACK yields status "queued"; the gateway owns final delivery
func (p *Publisher) Send(ctx context.Context, destination, body string) (*notify.SendResult, error) {
	if !p.IsHealthy() {
		return nil, &notify.SendError{Provider: ProviderName, Err: ErrBrokerClosed}
	}

	messageID := uuid.NewString()
	payload, err := json.Marshal(models.NotificationRequest{Destination: destination, Body: body})
	if err != nil {
		return nil, &notify.SendError{Provider: ProviderName, Err: fmt.Errorf("failed to serialize message: %w", err)}
	}

	l := p.logger.With("message_id", messageID, "destination", destination)

	// confirms are tracked per channel; one publish in flight keeps ack order aligned
	p.pubMu.Lock()
	deferred, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		OutboundExchange,
		destination,
		false,
		false,
		amqp.Publishing{
			MessageId:    messageID,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         payload,
		},
	)
	p.pubMu.Unlock()
	if err != nil {
		l.Error("Failed to publish message to exchange", "error", err)
		return nil, &notify.SendError{Provider: ProviderName, Err: fmt.Errorf("publish call failed: %w", err)}
	}

	select {
	case <-ctx.Done():
		return nil, &notify.SendError{Provider: ProviderName, Err: ctx.Err()}
	case <-deferred.Done():
		if !deferred.Acked() {
			return nil, &notify.SendError{Provider: ProviderName, Err: errors.New("RabbitMQ NACK received: message not persisted")}
		}
	case <-time.After(confirmTimeout):
		return nil, &notify.SendError{Provider: ProviderName, Err: errors.New("publisher confirm timeout")}
	}

	l.Debug("Message confirmed by broker")
	return &notify.SendResult{
		MessageID: messageID,
		Status:    "queued",
		Timestamp: time.Now().UTC(),
		Provider:  ProviderName,
	}, nil
}

func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Info("Terminating RabbitMQ publisher")
		p.cancel()
		if p.channel != nil {
			p.channel.Close()
		}
		if p.conn != nil {
			p.conn.Close()
		}
	})
	return nil
}

// IsHealthy returns true while the connection and channel are open
func (p *Publisher) IsHealthy() bool {
	return p.healthy.Load()
}
