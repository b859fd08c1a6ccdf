package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	requestTimeout = 5 * time.Second
	maxRetries     = 3
)

// Sink delivers events to one destination.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// Webhook posts events to an HTTP endpoint, retrying on 5xx.
type Webhook struct {
	cfg     Config
	client  *http.Client
	backoff time.Duration
}

// NewWebhook creates a webhook sink for cfg.
func NewWebhook(cfg Config) *Webhook {
	return &Webhook{
		cfg:     cfg,
		client:  &http.Client{Timeout: requestTimeout},
		backoff: time.Second,
	}
}

// Send posts event, retrying up to three times on transport errors and 5xx.
func (w *Webhook) Send(ctx context.Context, event Event) error {
	body, err := FormatPayload(w.cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * w.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range w.cfg.Headers {
			req.Header.Set(k, v)
		}

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
		}
		lastErr = fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook failed after %d attempts: %w", maxRetries, lastErr)
}
