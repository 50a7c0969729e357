package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Guizzs26/watch-crm/internal/notify"
	"github.com/Guizzs26/watch-crm/pkg/infra"
	"github.com/sony/gobreaker"
)

const maxErrorBody = 1 << 10

type HTTPConfig struct {
	Name    string
	URL     string
	Token   string
	Timeout time.Duration

	// FailureThreshold consecutive failures open the breaker for OpenFor
	FailureThreshold uint32
	OpenFor          time.Duration
}

// HTTPProvider delivers messages through a JSON messaging API
type HTTPProvider struct {
	cfg     HTTPConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

var _ notify.Sender = (*HTTPProvider)(nil)

func NewHTTPProvider(cfg HTTPConfig, logger *slog.Logger) (*HTTPProvider, error) {
	if cfg.URL == "" {
		return nil, errors.New("provider url is required")
	}
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}

	if logger == nil {
		logger = infra.NopLogger()
	}
	l := logger.With("provider", cfg.Name)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("Provider circuit breaker changed state", "from", from.String(), "to", to.String())
		},
	})

	return &HTTPProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  l,
	}, nil
}

func (p *HTTPProvider) Name() string {
	return p.cfg.Name
}

// Send posts one message. Any transport failure, non-2xx status or response without
// a message id is reported as *notify.SendError
func (p *HTTPProvider) Send(ctx context.Context, destination, body string) (*notify.SendResult, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.post(ctx, destination, body)
	})
	if err != nil {
		var sendErr *notify.SendError
		if errors.As(err, &sendErr) {
			return nil, err
		}
		// breaker open or half-open saturation
		return nil, &notify.SendError{Provider: p.cfg.Name, Err: err}
	}
	return out.(*notify.SendResult), nil
}

func (p *HTTPProvider) post(ctx context.Context, destination, body string) (*notify.SendResult, error) {
	payload, err := json.Marshal(sendRequest{To: destination, Body: body})
	if err != nil {
		return nil, &notify.SendError{Provider: p.cfg.Name, Err: fmt.Errorf("failed to serialize message: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, &notify.SendError{Provider: p.cfg.Name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &notify.SendError{Provider: p.cfg.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &notify.SendError{
			Provider:   p.cfg.Name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("provider rejected message: %s", bytes.TrimSpace(msg)),
		}
	}

	var decoded sendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&decoded); err != nil {
		return nil, &notify.SendError{Provider: p.cfg.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
	}
	if decoded.ID == "" {
		return nil, &notify.SendError{Provider: p.cfg.Name, StatusCode: resp.StatusCode, Err: errors.New("malformed response: missing message id")}
	}

	status := decoded.Status
	if status == "" {
		status = "sent"
	}

	p.logger.Debug("Message accepted by provider", "message_id", decoded.ID, "status", status)
	return &notify.SendResult{
		MessageID: decoded.ID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Provider:  p.cfg.Name,
	}, nil
}
