package conversation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmakarovsky/practice-ai-assistant/pkg/logging"
)

// Handler wires HTTP requests to the conversation service. It serves the
// operator-facing debug surface; user messages arrive through the
// Telegram webhook instead.
type Handler struct {
	service Service
	logger  *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(service Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// History handles GET /conversations/{identity}/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if identity == "" {
		http.Error(w, "Identity is required", http.StatusBadRequest)
		return
	}

	history, err := h.service.GetHistory(r.Context(), identity)
	if err != nil {
		h.logger.Error("failed to load history", "error", err, "identity", identity)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"identity": identity,
		"history":  history,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
