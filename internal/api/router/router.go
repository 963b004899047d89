package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmakarovsky/practice-ai-assistant/internal/conversation"
	httpmiddleware "github.com/dmakarovsky/practice-ai-assistant/internal/http/middleware"
	"github.com/dmakarovsky/practice-ai-assistant/internal/telegram"
	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	TelegramHandler     *telegram.Handler
	ConversationHandler *conversation.Handler
	MetricsHandler      http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)

	if cfg.TelegramHandler != nil {
		r.Post("/webhooks/telegram", cfg.TelegramHandler.Webhook)
	}

	if cfg.ConversationHandler != nil {
		r.Get("/conversations/{identity}/history", cfg.ConversationHandler.History)
	}

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
