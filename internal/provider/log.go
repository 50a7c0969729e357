package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/Guizzs26/watch-crm/internal/notify"
	"github.com/Guizzs26/watch-crm/pkg/infra"
	"github.com/google/uuid"
)

// LogProvider only logs messages. Used in development when no provider is configured
type LogProvider struct {
	logger *slog.Logger
}

var _ notify.Sender = (*LogProvider)(nil)

func NewLogProvider(logger *slog.Logger) *LogProvider {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Send(_ context.Context, destination, body string) (*notify.SendResult, error) {
	id := uuid.NewString()
	p.logger.Info("📨 [log provider] outbound message",
		"message_id", id,
		"destination", destination,
		"body_len", len(body),
	)
	return &notify.SendResult{
		MessageID: id,
		Status:    "logged",
		Timestamp: time.Now().UTC(),
		Provider:  "log",
	}, nil
}
