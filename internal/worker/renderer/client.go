package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ExecuteRequest is the payload sent to the rendering service.
type ExecuteRequest struct {
	VideoID string `json:"video_id"`
	Script  string `json:"script"`
	Quality string `json:"quality,omitempty"`
}

// ExecuteResult is the synchronous response from /execute.
type ExecuteResult struct {
	Success      bool    `json:"success"`
	ArtifactPath string  `json:"artifact_path"`
	TempDir      string  `json:"temp_dir"`
	DurationSecs float64 `json:"duration_secs"`
	Error        string  `json:"error"`
}

type Client interface {
	// Execute renders synchronously. Render jobs are minutes-scale, so the
	// call carries a large but bounded timeout.
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
	// ExecuteAsync hands the job to the service and returns once accepted;
	// completion arrives via the video-ready webhook.
	ExecuteAsync(ctx context.Context, req ExecuteRequest) error
}

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// DefaultTimeout bounds a single render. Complex scenes take minutes.
const DefaultTimeout = 10 * time.Minute

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	res, err := c.post(ctx, "/execute", req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("renderer http %d", res.StatusCode)
	}

	var out ExecuteResult
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("renderer: invalid response: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) ExecuteAsync(ctx context.Context, req ExecuteRequest) error {
	res, err := c.post(ctx, "/execute-async", req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusAccepted && (res.StatusCode < 200 || res.StatusCode >= 300) {
		return fmt.Errorf("renderer http %d", res.StatusCode)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.client.Do(req)
}

var _ Client = (*HTTPClient)(nil)
