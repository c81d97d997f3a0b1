package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// UsageHandler exposes per-feature usage standing and consumption.
type UsageHandler struct {
	usageSvc service.UsageService
	logger   zerolog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usageSvc service.UsageService, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{usageSvc: usageSvc, logger: logger}
}

// RegisterRoutes mounts usage routes.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/usage/", authMw(http.HandlerFunc(h.handleUsage)))
}

func (h *UsageHandler) handleUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/usage/")
	parts := strings.Split(rest, "/")

	feature := model.FeatureKind(parts[0])
	if !feature.Valid() {
		http.Error(w, "Unknown feature: "+parts[0], http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.check(w, r, userID, feature)
	case len(parts) == 2 && parts[1] == "consume" && r.Method == http.MethodPost:
		h.consume(w, r, userID, feature)
	default:
		http.NotFound(w, r)
	}
}

// check godoc
// @Summary Get the user's usage standing for a feature
// @Description Reports remaining allowance for the current period without consuming anything.
// @Tags usage
// @Produce json
// @Param feature path string true "Feature kind"
// @Success 200 {object} dto.UsageResponseDTO
// @Failure 400 {string} string "unknown feature"
// @Failure 401 {string} string "unauthorized"
// @Router /usage/{feature} [get]
func (h *UsageHandler) check(w http.ResponseWriter, r *http.Request, userID string, feature model.FeatureKind) {
	perm, err := h.usageSvc.Check(r.Context(), userID, feature)
	if err != nil {
		http.Error(w, "Failed to check usage: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeUsageJSON(w, http.StatusOK, feature, perm)
}

// consume godoc
// @Summary Consume one unit of a feature's allowance
// @Description Atomically records one use for the current period.
// @Tags usage
// @Produce json
// @Param feature path string true "Feature kind"
// @Success 200 {object} dto.UsageResponseDTO
// @Failure 400 {string} string "unknown feature"
// @Failure 401 {string} string "unauthorized"
// @Failure 409 {object} dto.UsageResponseDTO "usage limit reached"
// @Router /usage/{feature}/consume [post]
func (h *UsageHandler) consume(w http.ResponseWriter, r *http.Request, userID string, feature model.FeatureKind) {
	perm, err := h.usageSvc.Consume(r.Context(), userID, feature)
	if err != nil {
		if errors.Is(err, repository.ErrLimitExceeded) {
			if perm == nil {
				perm = &model.UsagePermission{RequiresAd: true}
			}
			writeUsageJSON(w, http.StatusConflict, feature, perm)
			return
		}
		http.Error(w, "Failed to consume usage: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeUsageJSON(w, http.StatusOK, feature, perm)
}

func writeUsageJSON(w http.ResponseWriter, status int, feature model.FeatureKind, perm *model.UsagePermission) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.UsageResponseDTO{
		Feature:         string(feature),
		Allowed:         perm.Allowed,
		RequiresAd:      perm.RequiresAd,
		IsPremium:       perm.IsPremium,
		UsedCount:       perm.UsedCount,
		AdUnlockedCount: perm.AdUnlockedCount,
		MaxLimit:        perm.MaxLimit,
	})
}
