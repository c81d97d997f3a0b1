package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// ReplacementHandler gates meal-replacement swaps behind interstitial ads for
// free users.
type ReplacementHandler struct {
	replacementSvc service.ReplacementService
	logger         zerolog.Logger
}

// NewReplacementHandler creates a new ReplacementHandler.
func NewReplacementHandler(replacementSvc service.ReplacementService, logger zerolog.Logger) *ReplacementHandler {
	return &ReplacementHandler{replacementSvc: replacementSvc, logger: logger}
}

// RegisterRoutes mounts meal-replacement routes.
func (h *ReplacementHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/meal-replacements/status", authMw(http.HandlerFunc(h.status)))
	mux.Handle("/meal-replacements/consume", authMw(http.HandlerFunc(h.consume)))
	mux.Handle("/meal-replacements/ad-shown", authMw(http.HandlerFunc(h.adShown)))
}

// status godoc
// @Summary Check whether the next meal replacement requires an ad
// @Tags meal-replacements
// @Produce json
// @Success 200 {object} dto.ReplacementStatusDTO
// @Failure 401 {string} string "unauthorized"
// @Router /meal-replacements/status [get]
func (h *ReplacementHandler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	needsAd, err := h.replacementSvc.NeedsAd(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to check replacement status: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.ReplacementStatusDTO{NeedsAd: needsAd})
}

// consume godoc
// @Summary Record a performed meal replacement
// @Tags meal-replacements
// @Produce json
// @Success 200 {object} dto.ReplacementStatusDTO
// @Failure 401 {string} string "unauthorized"
// @Router /meal-replacements/consume [post]
func (h *ReplacementHandler) consume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	count, err := h.replacementSvc.RecordReplacement(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to record replacement: "+err.Error(), http.StatusInternalServerError)
		return
	}
	needsAd, err := h.replacementSvc.NeedsAd(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to check replacement status: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.ReplacementStatusDTO{NeedsAd: needsAd, CountSinceAd: count})
}

// adShown godoc
// @Summary Reset the replacement counter after an interstitial ad
// @Tags meal-replacements
// @Success 204 {string} string "reset"
// @Failure 401 {string} string "unauthorized"
// @Router /meal-replacements/ad-shown [post]
func (h *ReplacementHandler) adShown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	if err := h.replacementSvc.RecordAdShown(r.Context(), userID); err != nil {
		http.Error(w, "Failed to reset replacement counter: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
