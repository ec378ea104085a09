package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sink stores submission payloads and returns a URL for them. Submission
// intake depends on this interface; tests swap in an in-memory fake.
type Sink interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// HTTPSink ships payload bytes to an external storage gateway over HTTP.
type HTTPSink struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewHTTPSink(baseURL, apiKey string) *HTTPSink {
	return &HTTPSink{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload PUTs the payload under the given object name and returns the stored
// object's URL
func (s *HTTPSink) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	url := fmt.Sprintf("%s/objects/%s", s.baseURL, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("storage API error: %d - %s", resp.StatusCode, string(body))
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return result.URL, nil
}
