package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// DLQHandler archives dead-lettered Pub/Sub messages, mainly ad postbacks
// that exhausted their delivery attempts.
type DLQHandler struct {
	service service.DLQService
	logger  zerolog.Logger
}

// NewDLQHandler creates a new DLQHandler.
func NewDLQHandler(s service.DLQService, l zerolog.Logger) *DLQHandler {
	return &DLQHandler{service: s, logger: l}
}

// RegisterRoutes mounts the DLQ push endpoint behind the push auth middleware.
func (h *DLQHandler) RegisterRoutes(mux *http.ServeMux, pubsubAuthMw func(http.Handler) http.Handler) {
	mux.Handle("/dlq", pubsubAuthMw(http.HandlerFunc(h.recordDLQ)))
}

// recordDLQ godoc
// @Summary Archive a dead-lettered Pub/Sub message
// @Tags dlq
// @Accept json
// @Success 204 {string} string "archived"
// @Failure 400 {string} string "invalid push envelope"
// @Router /dlq [post]
func (h *DLQHandler) recordDLQ(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var push dto.PubSubPushRequest
	if err := json.NewDecoder(r.Body).Decode(&push); err != nil {
		http.Error(w, "Invalid push envelope: "+err.Error(), http.StatusBadRequest)
		return
	}
	if push.Message.MessageID == "" {
		http.Error(w, "Invalid Pub/Sub message format: missing message ID", http.StatusBadRequest)
		return
	}

	h.logger.Info().
		Str("message_id", push.Message.MessageID).
		Str("subscription", push.Subscription).
		Msg("Processing dead-letter queue message")

	if err := h.service.ProcessAndSave(r.Context(), &push); err != nil {
		// Still ack: retrying a message that already dead-lettered would loop.
		h.logger.Error().Err(err).Str("message_id", push.Message.MessageID).Msg("Failed to archive DLQ message")
	}
	w.WriteHeader(http.StatusNoContent)
}
