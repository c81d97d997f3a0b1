package dto

import "app/internal/model"

// AnalysisResponseDTO is returned for a completed image analysis, whether
// served from cache or freshly computed.
type AnalysisResponseDTO struct {
	Result   *model.AnalysisResult `json:"result"`
	Cached   bool                  `json:"cached"`
	Feature  string                `json:"feature"`
	PhotoURL string                `json:"photo_url,omitempty"`
}

// CacheLookupResponseDTO is returned by the cache-only lookup endpoint.
type CacheLookupResponseDTO struct {
	Hit      bool                  `json:"hit"`
	Result   *model.AnalysisResult `json:"result,omitempty"`
	PhotoURL string                `json:"photo_url,omitempty"`
}

// CacheStoreDTO is the request body for storing an externally computed
// analysis result alongside its image.
type CacheStoreDTO struct {
	Result model.AnalysisResult `json:"result" validate:"required"`
}
