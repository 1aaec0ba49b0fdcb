package adapter

import "context"

// SubmitRequest carries everything the provider needs to start a generation:
// the prompt, a reachable URL for the source image, and the callback address
// at which we expect the completion webhook.
type SubmitRequest struct {
	Prompt     string
	ImageURL   string
	WebhookURL string
}

// GenerationClient wraps the external provider's submission endpoint.
// Submit returns the provider-issued job id used later for webhook
// correlation. Anything but a clean acceptance is an error.
type GenerationClient interface {
	Submit(ctx context.Context, req SubmitRequest) (apiJobID string, err error)
}

// ImageFetcher downloads result images announced by a completion webhook.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
