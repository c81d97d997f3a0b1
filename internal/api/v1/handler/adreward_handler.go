package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AdRewardHandler accepts ad-watch reports: directly from the mobile client,
// and as server-side-verification postbacks pushed by Pub/Sub.
type AdRewardHandler struct {
	rewardSvc service.AdRewardService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewAdRewardHandler creates a new AdRewardHandler.
func NewAdRewardHandler(rewardSvc service.AdRewardService, validate *validator.Validate, logger zerolog.Logger) *AdRewardHandler {
	return &AdRewardHandler{rewardSvc: rewardSvc, validate: validate, logger: logger}
}

// RegisterRoutes mounts the client-facing ad routes.
func (h *AdRewardHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/ads/complete", authMw(http.HandlerFunc(h.complete)))
}

// RegisterPushRoutes mounts the Pub/Sub push endpoint behind the push auth
// middleware.
func (h *AdRewardHandler) RegisterPushRoutes(mux *http.ServeMux, pubsubAuthMw func(http.Handler) http.Handler) {
	mux.Handle("/ads/postback", pubsubAuthMw(http.HandlerFunc(h.postback)))
}

// complete godoc
// @Summary Report a watched ad
// @Description Records the watch for auditing and, when completed, grants one extra unit of use for the feature in the current period.
// @Tags ads
// @Accept json
// @Produce json
// @Param watch body dto.AdWatchDTO true "Ad watch report"
// @Success 200 {object} dto.AdRewardResponseDTO
// @Failure 400 {string} string "invalid payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to record watch"
// @Router /ads/complete [post]
func (h *AdRewardHandler) complete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.AdWatchDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	feature := model.FeatureKind(req.Feature)
	if !feature.Valid() {
		http.Error(w, "Unknown feature: "+req.Feature, http.StatusBadRequest)
		return
	}

	outcome, err := h.rewardSvc.RecordWatch(r.Context(), userID, feature, req.Completed, model.AdWatchMetadata{
		Network:       req.Network,
		Placement:     req.Placement,
		DurationSec:   req.DurationSec,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		http.Error(w, "Failed to record ad watch: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.AdRewardResponseDTO{
		RewardGranted:   outcome.RewardGranted,
		AdUnlockedCount: outcome.AdUnlockedCount,
	})
}

// postback godoc
// @Summary Receive an ad network SSV postback
// @Description Handles a Pub/Sub push delivery carrying a server-side-verification event from an ad network. Processing failures return 500 so Pub/Sub retries and eventually dead-letters the message.
// @Tags ads
// @Accept json
// @Success 204 {string} string "processed"
// @Failure 400 {string} string "invalid push envelope"
// @Router /ads/postback [post]
func (h *AdRewardHandler) postback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var push dto.PubSubPushRequest
	if err := json.NewDecoder(r.Body).Decode(&push); err != nil {
		http.Error(w, "Invalid push envelope: "+err.Error(), http.StatusBadRequest)
		return
	}

	payload, err := base64.StdEncoding.DecodeString(push.Message.Data)
	if err != nil {
		// Undecodable data will never succeed on retry; ack it so it stops
		// redelivering, and rely on the log for investigation.
		h.logger.Error().Err(err).Str("message_id", push.Message.MessageID).Msg("Undecodable postback payload, acking")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var event dto.AdPostbackEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error().Err(err).Str("message_id", push.Message.MessageID).Msg("Malformed postback event, acking")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.validate.Struct(&event); err != nil {
		h.logger.Error().Err(err).Str("message_id", push.Message.MessageID).Msg("Invalid postback event, acking")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	feature := model.FeatureKind(event.Feature)
	if !feature.Valid() {
		h.logger.Error().Str("feature", event.Feature).Str("message_id", push.Message.MessageID).Msg("Unknown feature in postback event, acking")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, err := h.rewardSvc.RecordWatch(r.Context(), event.UserID, feature, event.Completed, model.AdWatchMetadata{
		Network:       event.Network,
		Placement:     event.Placement,
		DurationSec:   event.DurationSec,
		TransactionID: event.TransactionID,
	}); err != nil {
		// Transient failure: let Pub/Sub retry, then dead-letter.
		h.logger.Error().Err(err).Str("message_id", push.Message.MessageID).Msg("Failed to process postback event")
		http.Error(w, "failed to process postback", http.StatusInternalServerError)
		return
	}

	h.logger.Info().
		Str("message_id", push.Message.MessageID).
		Str("user_id", event.UserID).
		Str("feature", event.Feature).
		Bool("completed", event.Completed).
		Msg("Processed ad postback")
	w.WriteHeader(http.StatusNoContent)
}
