package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type stubCacheService struct {
	hitResult *model.AnalysisResult
	hitURL    string
	hit       bool

	storeURL  string
	storeErr  error
	storeCall int
}

func (s *stubCacheService) TryGetCached(context.Context, string, model.FeatureKind, model.SizeBucket, []byte) (*model.AnalysisResult, string, bool) {
	return s.hitResult, s.hitURL, s.hit
}

func (s *stubCacheService) Store(context.Context, string, model.FeatureKind, model.SizeBucket, []byte, *model.AnalysisResult) (string, error) {
	s.storeCall++
	return s.storeURL, s.storeErr
}

func (s *stubCacheService) PurgeExpired(context.Context, string) error { return nil }

type stubVisionService struct {
	result *model.AnalysisResult
	err    error
	calls  int
}

func (s *stubVisionService) Analyze(context.Context, []byte, model.FeatureKind) (*model.AnalysisResult, error) {
	s.calls++
	return s.result, s.err
}

type stubUsageService struct {
	checkPerm   *model.UsagePermission
	checkErr    error
	consumePerm *model.UsagePermission
	consumeErr  error
}

func (s *stubUsageService) Check(context.Context, string, model.FeatureKind) (*model.UsagePermission, error) {
	return s.checkPerm, s.checkErr
}

func (s *stubUsageService) Consume(context.Context, string, model.FeatureKind) (*model.UsagePermission, error) {
	return s.consumePerm, s.consumeErr
}

func (s *stubUsageService) GrantAdUnlock(context.Context, string, model.FeatureKind) (int, int, error) {
	return 0, 0, nil
}

func analyzeRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "meal.jpg")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write([]byte("image-bytes")); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, "user-1"))
}

func analyzeResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		DetectedItems: []model.DetectedItem{{Name: "salad", Calories: 150}},
		Confidence:    0.8,
	}
}

func TestAnalyzeConflictReportsCountsAtCeiling(t *testing.T) {
	usage := &stubUsageService{
		checkPerm: &model.UsagePermission{Allowed: true, UsedCount: 2, MaxLimit: 3},
		consumePerm: &model.UsagePermission{
			RequiresAd: true,
			UsedCount:  3,
			MaxLimit:   3,
		},
		consumeErr: repository.ErrLimitExceeded,
	}
	vision := &stubVisionService{result: analyzeResult()}
	h := NewAnalysisHandler(&stubCacheService{}, vision, usage, validator.New(), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.handleAnalysis(rec, analyzeRequest(t, "/analysis/meal_scan"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 when the consume race is lost, got %d", rec.Code)
	}
	var resp dto.UsageResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal conflict body: %v", err)
	}
	if resp.Allowed {
		t.Fatal("conflict body must not report the feature as allowed")
	}
	if !resp.RequiresAd || resp.UsedCount != 3 {
		t.Fatalf("expected ceiling counts in conflict body, got %+v", resp)
	}
}

func TestAnalyzeCacheHitIncludesPhotoURL(t *testing.T) {
	cache := &stubCacheService{
		hitResult: analyzeResult(),
		hitURL:    "https://photos.example.com/scans/user-1/e1.jpg?signed",
		hit:       true,
	}
	usage := &stubUsageService{
		checkPerm:   &model.UsagePermission{Allowed: true, MaxLimit: 3},
		consumePerm: &model.UsagePermission{Allowed: true, UsedCount: 1, MaxLimit: 3},
	}
	vision := &stubVisionService{}
	h := NewAnalysisHandler(cache, vision, usage, validator.New(), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.handleAnalysis(rec, analyzeRequest(t, "/analysis/meal_scan"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.AnalysisResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Cached || resp.PhotoURL != cache.hitURL {
		t.Fatalf("expected cached response with archived photo URL, got %+v", resp)
	}
	if vision.calls != 0 {
		t.Fatal("vision provider must not be called on a cache hit")
	}
}

func TestAnalyzeMissIncludesArchivedPhotoURL(t *testing.T) {
	cache := &stubCacheService{storeURL: "https://photos.example.com/scans/user-1/e2.jpg?signed"}
	usage := &stubUsageService{
		checkPerm:   &model.UsagePermission{Allowed: true, MaxLimit: 3},
		consumePerm: &model.UsagePermission{Allowed: true, UsedCount: 1, MaxLimit: 3},
	}
	vision := &stubVisionService{result: analyzeResult()}
	h := NewAnalysisHandler(cache, vision, usage, validator.New(), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.handleAnalysis(rec, analyzeRequest(t, "/analysis/meal_scan"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.AnalysisResponseDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Cached {
		t.Fatal("expected a fresh analysis, not a cache hit")
	}
	if vision.calls != 1 || cache.storeCall != 1 {
		t.Fatalf("expected one vision call and one cache store, got %d/%d", vision.calls, cache.storeCall)
	}
	if resp.PhotoURL != cache.storeURL {
		t.Fatalf("expected archived photo URL in response, got %q", resp.PhotoURL)
	}
}
