package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

// WebhookSink posts events as JSON to a spreadsheet-bridge web app URL.
type WebhookSink struct {
	url        string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewWebhookSink builds a sink for the given web-app URL.
func NewWebhookSink(url string, logger *logging.Logger) *WebhookSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookSink{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ Sink = (*WebhookSink)(nil)

// Record posts one event. Non-2xx responses are reported as errors so the
// caller can log them, but the caller is expected to ignore them otherwise.
func (s *WebhookSink) Record(ctx context.Context, evt Event) error {
	if s.url == "" {
		return errors.New("analytics: webhook url missing")
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("analytics: failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("analytics: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analytics: webhook post failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("analytics: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
