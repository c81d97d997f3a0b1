package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"app/internal/model"
)

// VisionService calls the external vision-analysis provider. The call is
// expensive and slow; it is only made on a cache miss.
type VisionService interface {
	Analyze(ctx context.Context, imageData []byte, mode model.FeatureKind) (*model.AnalysisResult, error)
}

type visionService struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewVisionService creates a VisionService against the configured provider.
func NewVisionService(baseURL, apiKey string, timeout time.Duration) VisionService {
	return &visionService{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (v *visionService) Analyze(ctx context.Context, imageData []byte, mode model.FeatureKind) (*model.AnalysisResult, error) {
	requestBody := struct {
		Image string `json:"image"`
		Mode  string `json:"mode"`
	}{
		Image: base64.StdEncoding.EncodeToString(imageData),
		Mode:  string(mode),
	}
	bodyJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/analyze", bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision analysis call failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, fmt.Errorf("vision analysis failed: %s", errorResp.Error.Message)
		}
		return nil, fmt.Errorf("vision analysis failed: HTTP %d", resp.StatusCode)
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	return &result, nil
}
