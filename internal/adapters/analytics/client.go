package analytics

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

type captureRequest struct {
	APIKey     string         `json:"api_key"`
	Event      string         `json:"event"`
	DistinctID string         `json:"distinct_id"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type httpSink struct {
	client   *http.Client
	endpoint string
	apiKey   string
	logger   *slog.Logger
}

// NewHTTPSink returns an AnalyticsSink that posts capture events to a
// PostHog-compatible /capture endpoint. Delivery is best effort: failures are
// logged and never propagated to callers.
func NewHTTPSink(client *http.Client, endpoint, apiKey string, logger *slog.Logger) domain.AnalyticsSink {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &httpSink{client: client, endpoint: endpoint, apiKey: apiKey, logger: logger}
}

func (s *httpSink) Capture(ctx context.Context, distinctID, event string, properties map[string]any) {
	if err := s.capture(ctx, distinctID, event, properties); err != nil {
		s.logger.Warn("failed to capture analytics event", "event", event, "error", err)
	}
}

func (s *httpSink) capture(ctx context.Context, distinctID, event string, properties map[string]any) error {
	body, err := json.Marshal(captureRequest{
		APIKey:     s.apiKey,
		Event:      event,
		DistinctID: distinctID,
		Properties: properties,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode capture request: %w", err)
	}
	url := s.endpoint + "/capture"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post capture event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("analytics api returned status: %d", resp.StatusCode)
	}
	return nil
}

type noopSink struct{}

// NewNoopSink returns an AnalyticsSink that drops every event. Used when no
// analytics endpoint is configured.
func NewNoopSink() domain.AnalyticsSink {
	return noopSink{}
}

func (noopSink) Capture(ctx context.Context, distinctID, event string, properties map[string]any) {}
