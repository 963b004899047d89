package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

// ConversationEvent represents a structured event in the conversation
// lifecycle. All events share the same base fields for easy filtering/grep.
type ConversationEvent struct {
	Time     string         `json:"time"`
	Event    string         `json:"event"`
	Identity string         `json:"identity"`
	Stage    string         `json:"stage,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// EventLogger emits structured JSON events at each decision point in the
// conversation flow. Designed for fast grep/filter debugging:
//
//	grep '"event":"llm_response_generated"' /var/log/app.log
//	grep '"identity":"42"' /var/log/app.log
type EventLogger struct {
	logger *logging.Logger
}

// NewEventLogger creates a new conversation event logger.
func NewEventLogger(logger *logging.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Log emits a structured conversation event.
func (e *EventLogger) Log(_ context.Context, event, identity string, stage Stage, data map[string]any) {
	if e == nil || e.logger == nil {
		return
	}
	evt := ConversationEvent{
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
		Event:    event,
		Identity: identity,
		Stage:    string(stage),
		Data:     data,
	}
	b, _ := json.Marshal(evt)
	e.logger.Info(string(b))
}

// Convenience methods for common events:

func (e *EventLogger) ConversationStarted(ctx context.Context, identity string) {
	e.Log(ctx, "conversation_started", identity, StageInitial, nil)
}

func (e *EventLogger) MessageReceived(ctx context.Context, identity string, stage Stage, message string) {
	// Truncate message for logging, keeping rune boundaries intact.
	msg := message
	if runes := []rune(msg); len(runes) > 200 {
		msg = string(runes[:200]) + "..."
	}
	e.Log(ctx, "message_received", identity, stage, map[string]any{
		"message": msg,
	})
}

func (e *EventLogger) LLMResponseGenerated(ctx context.Context, identity string, stage Stage, durationMs int64, tokenCount int) {
	e.Log(ctx, "llm_response_generated", identity, stage, map[string]any{
		"duration_ms": durationMs,
		"tokens":      tokenCount,
	})
}

func (e *EventLogger) PaymentConfirmed(ctx context.Context, identity string, stage Stage) {
	e.Log(ctx, "payment_confirmed", identity, stage, nil)
}

func (e *EventLogger) FallbackSubstituted(ctx context.Context, identity string, stage Stage, reason string) {
	e.Log(ctx, "fallback_substituted", identity, stage, map[string]any{
		"reason": reason,
	})
}

func (e *EventLogger) SanitizerTriggered(ctx context.Context, identity string, stage Stage, rules []string) {
	e.Log(ctx, "sanitizer_triggered", identity, stage, map[string]any{
		"rules": rules,
	})
}

func (e *EventLogger) ReplySent(ctx context.Context, identity string, bodyLen int) {
	e.Log(ctx, "reply_sent", identity, "", map[string]any{
		"body_len": bodyLen,
	})
}

func (e *EventLogger) ErrorOccurred(ctx context.Context, identity, step string, err error) {
	e.Log(ctx, "error", identity, "", map[string]any{
		"step":  step,
		"error": err.Error(),
	})
}
