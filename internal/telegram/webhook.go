package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dmakarovsky/practice-ai-assistant/internal/conversation"
	"github.com/dmakarovsky/practice-ai-assistant/internal/observability/metrics"
	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

var webhookTracer = otel.Tracer("assistant.internal.telegram.webhook")

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type conversationPublisher interface {
	EnqueueMessage(ctx context.Context, jobID string, req conversation.MessageRequest) error
}

// Handler handles Telegram webhook requests.
type Handler struct {
	webhookSecret string
	publisher     conversationPublisher
	processed     ProcessedStore
	metrics       *metrics.WebhookMetrics
	logger        *logging.Logger
}

// NewHandler creates a new Telegram webhook handler.
func NewHandler(webhookSecret string, publisher conversationPublisher, processed ProcessedStore, m *metrics.WebhookMetrics, logger *logging.Logger) *Handler {
	if publisher == nil {
		panic("telegram: publisher cannot be nil")
	}
	if processed == nil {
		processed = NewMemoryProcessedStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		webhookSecret: webhookSecret,
		publisher:     publisher,
		processed:     processed,
		metrics:       m,
		logger:        logger,
	}
}

// Webhook handles POST /webhooks/telegram requests. Telegram retries any
// non-200 response, so every accepted request is acknowledged with 200
// even when the update carries nothing to process.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "telegram.webhook")
	defer span.End()

	if h.webhookSecret != "" && r.Header.Get(secretTokenHeader) != h.webhookSecret {
		h.logger.Warn("invalid telegram webhook secret")
		h.metrics.ObserveInbound("unauthorized")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Error("failed to decode telegram update", "error", err)
		h.metrics.ObserveInbound("malformed")
		span.RecordError(err)
		h.ack(w)
		return
	}
	span.SetAttributes(attribute.Int64("assistant.telegram.update_id", update.UpdateID))

	if update.Message == nil || strings.TrimSpace(update.Message.Text) == "" {
		h.logger.Debug("telegram update carries no text message", "update_id", update.UpdateID)
		h.metrics.ObserveInbound("skipped")
		h.ack(w)
		return
	}

	processed, err := h.processed.AlreadyProcessed(ctx, update.UpdateID)
	if err != nil {
		// Dedupe store trouble should not drop the message; process it
		// and accept the small chance of a duplicate turn.
		h.logger.Error("failed to check update dedupe", "error", err, "update_id", update.UpdateID)
		span.RecordError(err)
	} else if processed {
		h.logger.Debug("duplicate telegram update", "update_id", update.UpdateID)
		h.metrics.ObserveInbound("duplicate")
		h.ack(w)
		return
	}

	identity := strconv.FormatInt(update.Message.Chat.ID, 10)
	span.SetAttributes(attribute.String("assistant.identity", identity))

	req := conversation.MessageRequest{
		Identity:    identity,
		DisplayName: update.Message.From.DisplayName(),
		Text:        update.Message.Text,
	}

	jobID := strconv.FormatInt(update.UpdateID, 10)
	if err := h.publisher.EnqueueMessage(ctx, jobID, req); err != nil {
		h.logger.Error("failed to enqueue telegram message", "error", err, "identity", identity)
		h.metrics.ObserveInbound("enqueue_failed")
		span.RecordError(err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Mark only after the handoff succeeded so a failed enqueue stays
	// retryable by Telegram's redelivery.
	if err := h.processed.MarkProcessed(ctx, update.UpdateID); err != nil {
		h.logger.Error("failed to record processed update", "error", err, "update_id", update.UpdateID)
	}

	h.logger.Info("telegram message accepted", "identity", identity, "update_id", update.UpdateID)
	h.metrics.ObserveInbound("accepted")
	h.ack(w)
}

func (h *Handler) ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}
