package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmakarovsky/practice-ai-assistant/internal/conversation"
	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

type capturePublisher struct {
	jobs []conversation.MessageRequest
	err  error
}

func (p *capturePublisher) EnqueueMessage(_ context.Context, _ string, req conversation.MessageRequest) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, req)
	return nil
}

func postUpdate(t *testing.T, handler *Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.Webhook(rec, req)
	return rec
}

const sampleUpdate = `{
	"update_id": 1001,
	"message": {
		"message_id": 5,
		"from": {"id": 42, "first_name": "Анна", "last_name": "Иванова"},
		"chat": {"id": 42, "type": "private"},
		"text": "Здравствуйте, хочу записаться"
	}
}`

func TestWebhookEnqueuesMessage(t *testing.T) {
	publisher := &capturePublisher{}
	handler := NewHandler("", publisher, NewMemoryProcessedStore(), nil, logging.Default())

	rec := postUpdate(t, handler, sampleUpdate, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, publisher.jobs, 1)
	assert.Equal(t, "42", publisher.jobs[0].Identity)
	assert.Equal(t, "Анна Иванова", publisher.jobs[0].DisplayName)
	assert.Equal(t, "Здравствуйте, хочу записаться", publisher.jobs[0].Text)
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	publisher := &capturePublisher{}
	handler := NewHandler("s3cret", publisher, NewMemoryProcessedStore(), nil, logging.Default())

	rec := postUpdate(t, handler, sampleUpdate, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, publisher.jobs)

	rec = postUpdate(t, handler, sampleUpdate, map[string]string{
		"X-Telegram-Bot-Api-Secret-Token": "s3cret",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, publisher.jobs, 1)
}

func TestWebhookAcksMalformedPayload(t *testing.T) {
	publisher := &capturePublisher{}
	handler := NewHandler("", publisher, NewMemoryProcessedStore(), nil, logging.Default())

	rec := postUpdate(t, handler, "{not json", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, publisher.jobs)
}

func TestWebhookAcksUpdateWithoutText(t *testing.T) {
	publisher := &capturePublisher{}
	handler := NewHandler("", publisher, NewMemoryProcessedStore(), nil, logging.Default())

	rec := postUpdate(t, handler, `{"update_id": 2, "message": {"chat": {"id": 9}, "text": "  "}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, publisher.jobs)

	rec = postUpdate(t, handler, `{"update_id": 3}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, publisher.jobs)
}

func TestWebhookDeduplicatesRetries(t *testing.T) {
	publisher := &capturePublisher{}
	handler := NewHandler("", publisher, NewMemoryProcessedStore(), nil, logging.Default())

	rec := postUpdate(t, handler, sampleUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = postUpdate(t, handler, sampleUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, publisher.jobs, 1)
}

func TestWebhookEnqueueFailureStaysRetryable(t *testing.T) {
	publisher := &capturePublisher{err: errors.New("queue full")}
	processed := NewMemoryProcessedStore()
	handler := NewHandler("", publisher, processed, nil, logging.Default())

	rec := postUpdate(t, handler, sampleUpdate, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, publisher.jobs)

	// Telegram redelivers the same update once the queue recovers; the
	// failed attempt must not have marked it as processed.
	publisher.err = nil
	rec = postUpdate(t, handler, sampleUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, publisher.jobs, 1)
	assert.Equal(t, "42", publisher.jobs[0].Identity)

	// A further redelivery after success is a duplicate.
	rec = postUpdate(t, handler, sampleUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, publisher.jobs, 1)
}
