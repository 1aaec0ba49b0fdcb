package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"imagine-service/internal/domain"
	"imagine-service/internal/domain/ports/adapter"
)

var _ adapter.GenerationClient = (*Client)(nil)

// Client submits generation requests to the external provider's /imagine
// endpoint. The provider's only obligations are to accept the job, hand back
// a job id, and eventually call the webhook URL.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type submitRequest struct {
	Prompt     string `json:"prompt"`
	ImageURL   string `json:"imageUrl"`
	WebhookURL string `json:"webhookUrl"`
}

type submitResponse struct {
	JobID   string `json:"jobId"`
	Message string `json:"message,omitempty"`
}

func (c *Client) Submit(ctx context.Context, req adapter.SubmitRequest) (string, error) {
	payload, err := json.Marshal(submitRequest{
		Prompt:     req.Prompt,
		ImageURL:   req.ImageURL,
		WebhookURL: req.WebhookURL,
	})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/imagine", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: provider returned %d: %s", domain.ErrUpstream, resp.StatusCode, snippet(body))
	}

	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode provider response: %v", domain.ErrUpstream, err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("%w: provider response missing jobId", domain.ErrUpstream)
	}
	return out.JobID, nil
}

func snippet(b []byte) string {
	const max = 256
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
