package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/model"
)

func TestVisionAnalyzeSuccess(t *testing.T) {
	imageData := []byte("fake-image-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("expected api key header, got %q", got)
		}
		var req struct {
			Image string `json:"image"`
			Mode  string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Mode != "meal_scan" {
			t.Errorf("expected mode meal_scan, got %q", req.Mode)
		}
		if decoded, _ := base64.StdEncoding.DecodeString(req.Image); string(decoded) != string(imageData) {
			t.Error("image payload was not base64 of the original bytes")
		}
		json.NewEncoder(w).Encode(model.AnalysisResult{
			DetectedItems: []model.DetectedItem{{Name: "salad", Calories: 150}},
			Confidence:    0.8,
		})
	}))
	defer srv.Close()

	svc := NewVisionService(srv.URL, "secret", 5*time.Second)
	result, err := svc.Analyze(context.Background(), imageData, model.FeatureMealScan)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.DetectedItems) != 1 || result.DetectedItems[0].Name != "salad" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestVisionAnalyzeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "rate limited"}})
	}))
	defer srv.Close()

	svc := NewVisionService(srv.URL, "secret", 5*time.Second)
	if _, err := svc.Analyze(context.Background(), []byte("img"), model.FeatureMealScan); err == nil {
		t.Fatal("expected error from provider failure")
	}
}
