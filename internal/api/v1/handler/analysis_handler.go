package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"app/internal/api/v1/dto"
	"app/internal/imagehash"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// maxImageUploadBytes bounds the multipart form held in memory per request.
const maxImageUploadBytes = 10 << 20

// AnalysisHandler handles image analysis endpoints: the full analyze flow,
// cache-only lookups, and client-supplied cache stores.
type AnalysisHandler struct {
	cacheSvc  service.CacheService
	visionSvc service.VisionService
	usageSvc  service.UsageService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(cacheSvc service.CacheService, visionSvc service.VisionService, usageSvc service.UsageService, validate *validator.Validate, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		cacheSvc:  cacheSvc,
		visionSvc: visionSvc,
		usageSvc:  usageSvc,
		validate:  validate,
		logger:    logger,
	}
}

// RegisterRoutes mounts analysis routes.
func (h *AnalysisHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/analysis/", authMw(http.HandlerFunc(h.handleAnalysis)))
}

func (h *AnalysisHandler) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/analysis/")
	parts := strings.Split(rest, "/")

	feature := model.FeatureKind(parts[0])
	if !feature.Valid() {
		http.Error(w, "Unknown feature: "+parts[0], http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1:
		h.analyze(w, r, feature)
	case len(parts) == 2 && parts[1] == "lookup":
		h.lookup(w, r, feature)
	case len(parts) == 2 && parts[1] == "cache":
		h.cacheStore(w, r, feature)
	default:
		http.NotFound(w, r)
	}
}

// readImage extracts the uploaded image from the multipart form.
func readImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// analyze godoc
// @Summary Analyze a meal, label, or progress photo
// @Description Runs the full analysis flow: usage check, cache lookup, vision call on a miss, cache store, and usage consumption.
// @Tags analysis
// @Accept multipart/form-data
// @Produce json
// @Param feature path string true "Feature kind (meal_scan, label_scan, progress_scan)"
// @Param image formData file true "Photo to analyze"
// @Success 200 {object} dto.AnalysisResponseDTO
// @Failure 400 {string} string "invalid feature or image"
// @Failure 401 {string} string "unauthorized"
// @Failure 409 {object} dto.UsageResponseDTO "usage limit reached"
// @Failure 502 {string} string "vision provider failed"
// @Router /analysis/{feature} [post]
func (h *AnalysisHandler) analyze(w http.ResponseWriter, r *http.Request, feature model.FeatureKind) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	perm, err := h.usageSvc.Check(r.Context(), userID, feature)
	if err != nil {
		http.Error(w, "Failed to check usage: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !perm.Allowed {
		writeUsageJSON(w, http.StatusConflict, feature, perm)
		return
	}

	imageData, err := readImage(r)
	if err != nil {
		http.Error(w, "Invalid image upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	bucket := service.DetectSizeBucket(imageData)

	result, photoURL, cached := h.cacheSvc.TryGetCached(r.Context(), userID, feature, bucket, imageData)
	if !cached {
		result, err = h.visionSvc.Analyze(r.Context(), imageData, feature)
		if err != nil {
			h.logger.Error().Err(err).Str("feature", string(feature)).Msg("Vision analysis failed")
			http.Error(w, "Analysis failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		photoURL, err = h.cacheSvc.Store(r.Context(), userID, feature, bucket, imageData, result)
		if err != nil {
			// The user still gets their result; only future cache hits are lost.
			h.logger.Warn().Err(err).Str("feature", string(feature)).Msg("Failed to cache analysis result")
		}
	}

	if consumed, err := h.usageSvc.Consume(r.Context(), userID, feature); err != nil {
		if errors.Is(err, repository.ErrLimitExceeded) {
			// Lost the race against a concurrent request in the same period.
			// Consume reports the counts it observed at the ceiling.
			if consumed == nil {
				consumed = &model.UsagePermission{RequiresAd: true, MaxLimit: perm.MaxLimit}
			}
			writeUsageJSON(w, http.StatusConflict, feature, consumed)
			return
		}
		http.Error(w, "Failed to record usage: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.AnalysisResponseDTO{
		Result:   result,
		Cached:   cached,
		Feature:  string(feature),
		PhotoURL: photoURL,
	})
}

// lookup godoc
// @Summary Look up a cached analysis for a photo
// @Description Fingerprints the photo and returns a prior result if a visually similar photo was analyzed recently. Never calls the vision provider and never consumes usage.
// @Tags analysis
// @Accept multipart/form-data
// @Produce json
// @Param feature path string true "Feature kind"
// @Param image formData file true "Photo to look up"
// @Success 200 {object} dto.CacheLookupResponseDTO
// @Failure 400 {string} string "invalid image"
// @Failure 401 {string} string "unauthorized"
// @Router /analysis/{feature}/lookup [post]
func (h *AnalysisHandler) lookup(w http.ResponseWriter, r *http.Request, feature model.FeatureKind) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	imageData, err := readImage(r)
	if err != nil {
		http.Error(w, "Invalid image upload: "+err.Error(), http.StatusBadRequest)
		return
	}
	bucket := service.DetectSizeBucket(imageData)

	result, photoURL, hit := h.cacheSvc.TryGetCached(r.Context(), userID, feature, bucket, imageData)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dto.CacheLookupResponseDTO{Hit: hit, Result: result, PhotoURL: photoURL})
}

// cacheStore godoc
// @Summary Cache an analysis result computed elsewhere
// @Description Stores a client-supplied analysis result against the photo's fingerprint so later lookups of similar photos hit.
// @Tags analysis
// @Accept multipart/form-data
// @Produce json
// @Param feature path string true "Feature kind"
// @Param image formData file true "Analyzed photo"
// @Param result formData string true "Analysis result JSON"
// @Success 201 {string} string "stored"
// @Failure 400 {string} string "invalid image or result"
// @Failure 401 {string} string "unauthorized"
// @Router /analysis/{feature}/cache [post]
func (h *AnalysisHandler) cacheStore(w http.ResponseWriter, r *http.Request, feature model.FeatureKind) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	imageData, err := readImage(r)
	if err != nil {
		http.Error(w, "Invalid image upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	var req dto.CacheStoreDTO
	if err := json.Unmarshal([]byte(r.FormValue("result")), &req.Result); err != nil {
		http.Error(w, "Invalid result payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	bucket := service.DetectSizeBucket(imageData)
	if _, err := h.cacheSvc.Store(r.Context(), userID, feature, bucket, imageData, &req.Result); err != nil {
		if errors.Is(err, imagehash.ErrDecode) {
			http.Error(w, "Image could not be decoded", http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to store analysis: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
