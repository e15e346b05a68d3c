package client

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

	"github.com/skustudio/api/internal/config"
)

// ImageGenClient handles communication with the image generation provider.
// The provider edits a reference product photo according to a style prompt
// and returns the generated image as base64.
type ImageGenClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// GenerateImageRequest carries one generation call.
type GenerateImageRequest struct {
	ReferenceImage []byte
	Prompt         string
	Title          string
	Subtitle       string
	AspectRatio    string
}

// GenerateImageResult is the decoded provider output.
type GenerateImageResult struct {
	Data     []byte
	MimeType string
}

type imageEditRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	Image       string `json:"image"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	RenderText  string `json:"render_text,omitempty"`
}

type imageEditResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url,omitempty"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewImageGenClient creates a new image generation client
func NewImageGenClient(cfg *config.ImageGenConfig) *ImageGenClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ImageGenClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}
}

// Generate submits one reference image plus prompt and returns the
// generated image bytes. Provider failures are surfaced verbatim so the
// caller can record them on the item.
func (c *ImageGenClient) Generate(ctx context.Context, req *GenerateImageRequest) (*GenerateImageResult, error) {
	renderText := ""
	if req.Title != "" {
		renderText = req.Title
		if req.Subtitle != "" {
			renderText += "\n" + req.Subtitle
		}
	}

	body := imageEditRequest{
		Model:       c.model,
		Prompt:      req.Prompt,
		Image:       base64.StdEncoding.EncodeToString(req.ReferenceImage),
		AspectRatio: req.AspectRatio,
		RenderText:  renderText,
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var editResp imageEditResponse
	if err := json.Unmarshal(respBody, &editResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if editResp.Error != nil {
		return nil, fmt.Errorf("image generation failed: %s", editResp.Error.Message)
	}
	if len(editResp.Data) == 0 {
		return nil, fmt.Errorf("no image in response")
	}

	payload := editResp.Data[0].B64JSON
	// Some providers return a data URI instead of bare base64.
	if idx := strings.Index(payload, "base64,"); idx != -1 {
		payload = payload[idx+len("base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}

	return &GenerateImageResult{
		Data:     data,
		MimeType: "image/png",
	}, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *ImageGenClient) IsConfigured() bool {
	return c.apiKey != ""
}
