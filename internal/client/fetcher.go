package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFetchBytes caps a single reference image download.
const maxFetchBytes = 20 * 1024 * 1024

// ImageFetcher downloads reference images over HTTP.
type ImageFetcher struct {
	client *http.Client
}

// NewImageFetcher creates a fetcher with the given per-request timeout.
func NewImageFetcher(timeout time.Duration) *ImageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ImageFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch downloads the image at the given URL and returns its bytes.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("image exceeds %d byte limit", maxFetchBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}

	return data, nil
}
