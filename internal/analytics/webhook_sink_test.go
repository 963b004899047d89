package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

func TestWebhookSinkRecord(t *testing.T) {
	var received Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, logging.Default())
	evt := Event{
		Identity:    "42",
		DisplayName: "Без имени",
		Text:        "Привет",
		Stage:       "active",
		Timestamp:   time.Now().UTC(),
	}

	require.NoError(t, sink.Record(context.Background(), evt))
	assert.Equal(t, "42", received.Identity)
	assert.Equal(t, "active", received.Stage)
}

func TestWebhookSinkRecordNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, nil)
	err := sink.Record(context.Background(), Event{Identity: "42"})
	assert.Error(t, err)
}

func TestNoopSink(t *testing.T) {
	assert.NoError(t, NoopSink{}.Record(context.Background(), Event{}))
}
