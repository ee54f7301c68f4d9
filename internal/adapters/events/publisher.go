package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"launchline/internal/domain"
)

type webhookPublisher struct {
	client   *http.Client
	endpoint string
}

type webhookEnvelope struct {
	EventType domain.EventType `json:"event_type"`
	Payload   any              `json:"payload"`
	SentAt    time.Time        `json:"sent_at"`
}

// NewWebhookPublisher returns an EventPublisher that POSTs each event to the
// given endpoint as JSON. Non-2xx responses are errors so the outbox
// dispatcher retries them.
func NewWebhookPublisher(client *http.Client, endpoint string) domain.EventPublisher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &webhookPublisher{client: client, endpoint: endpoint}
}

func (p *webhookPublisher) Publish(ctx context.Context, eventType domain.EventType, payload any) error {
	body, err := json.Marshal(webhookEnvelope{
		EventType: eventType,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver %s event: %w", eventType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status: %d", resp.StatusCode)
	}
	return nil
}

type logPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns an EventPublisher that writes events to the log.
// Used when no webhook endpoint is configured.
func NewLogPublisher(logger *slog.Logger) domain.EventPublisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Publish(ctx context.Context, eventType domain.EventType, payload any) error {
	p.logger.Info("domain event published", "event_type", string(eventType), "payload", payload)
	return nil
}
