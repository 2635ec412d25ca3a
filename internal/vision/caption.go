package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPCaptioner calls an im2txt inference sidecar over HTTP. The service
// accepts raw image bytes and returns the generated caption including the
// model's start/end markers.
type HTTPCaptioner struct {
	url    string
	client *http.Client
}

func NewHTTPCaptioner(url string) *HTTPCaptioner {
	return &HTTPCaptioner{
		url:    strings.TrimRight(url, "/") + "/caption",
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type captionResponse struct {
	Caption string `json:"caption"`
}

func (c *HTTPCaptioner) GenerateCaption(ctx context.Context, imageData []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("build caption request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate caption: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate caption: unexpected status %d", resp.StatusCode)
	}

	var body captionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode caption response: %w", err)
	}
	return body.Caption, nil
}
