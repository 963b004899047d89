package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

func TestHealthEndpoint(t *testing.T) {
	handler := New(&Config{Logger: logging.Default()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUnknownRouteReturns404(t *testing.T) {
	handler := New(&Config{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptionalRoutesAbsentWhenUnconfigured(t *testing.T) {
	handler := New(&Config{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
