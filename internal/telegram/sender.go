package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dmakarovsky/practice-ai-assistant/internal/conversation"
	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

var sendTracer = otel.Tracer("assistant.internal.telegram.send")

// Sender posts replies through the Telegram Bot API.
type Sender struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewSender builds a sender with sane defaults.
func NewSender(botToken, baseURL string, logger *logging.Logger) *Sender {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ conversation.ReplyMessenger = (*Sender)(nil)

type sendMessagePayload struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// SendReply dispatches a single message, retrying transient failures.
func (s *Sender) SendReply(ctx context.Context, msg conversation.OutboundReply) error {
	if s.botToken == "" {
		return errors.New("telegram: bot token missing")
	}
	chatID, err := strconv.ParseInt(msg.Identity, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat identity %q: %w", msg.Identity, err)
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("telegram: body required")
	}

	ctx, span := sendTracer.Start(ctx, "telegram.send_message")
	defer span.End()
	span.SetAttributes(attribute.String("assistant.identity", msg.Identity))

	body, err := json.Marshal(sendMessagePayload{ChatID: chatID, Text: msg.Body})
	if err != nil {
		return fmt.Errorf("telegram: failed to encode send payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				s.logger.Info("telegram message sent", "identity", msg.Identity)
				return nil
			}
			lastErr = fmt.Errorf("telegram send failed: %s", formatAPIError(resp.StatusCode, respBody))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				break
			}
		}

		if attempt < 3 {
			sleep := time.Duration(200+rand.Intn(300)) * time.Millisecond
			time.Sleep(sleep)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
	}
	return lastErr
}

func formatAPIError(status int, body []byte) string {
	var parsed sendMessageResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Description != "" {
		return fmt.Sprintf("status %d: %s", status, parsed.Description)
	}
	return fmt.Sprintf("status %d", status)
}
