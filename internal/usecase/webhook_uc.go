package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"

	"imagine-service/internal/domain"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/domain/ports/adapter"
	"imagine-service/internal/domain/ports/repository"
	"imagine-service/internal/infra/logging"
	"imagine-service/internal/infra/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// WebhookPayload is the provider's completion notification.
type WebhookPayload struct {
	JobID  string   `json:"jobId"` // provider-issued id, not ours
	Status string   `json:"status"`
	Images []string `json:"images,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// resultFetchConcurrency bounds the fan-out over result image downloads.
const resultFetchConcurrency = 4

// WebhookUseCase applies an inbound provider notification to the job it
// belongs to. The correlation entry is consumed (deleted) on first
// resolution, so a duplicate delivery resolves to not-found and mutates
// nothing.
type WebhookUseCase struct {
	jobs        repository.JobRepository
	correlation repository.CorrelationRepository
	blobs       adapter.BlobStore
	fetcher     adapter.ImageFetcher
	log         *zerolog.Logger
}

func NewWebhookUseCase(
	jobs repository.JobRepository,
	correlation repository.CorrelationRepository,
	blobs adapter.BlobStore,
	fetcher adapter.ImageFetcher,
	logger *zerolog.Logger,
) *WebhookUseCase {
	l := logger.With().Str("component", "WebhookUseCase").Logger()
	return &WebhookUseCase{jobs: jobs, correlation: correlation, blobs: blobs, fetcher: fetcher, log: &l}
}

// Handle validates the payload, resolves the correlation entry and applies
// the transition. Image materialization failures leave the job untouched and
// propagate to the caller; partial uploads are not rolled back.
func (uc *WebhookUseCase) Handle(ctx context.Context, p WebhookPayload) error {
	defer logging.TraceDuration(uc.log, "WebhookUseCase.Handle")()

	if p.JobID == "" || p.Status == "" {
		return fmt.Errorf("%w: webhook payload requires jobId and status", domain.ErrInvalidArgument)
	}

	entry, err := uc.correlation.Resolve(ctx, p.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.log.Warn().Str("api_job_id", p.JobID).Msg("webhook for unknown or expired job")
			metrics.IncWebhook("unmatched")
			return fmt.Errorf("resolve correlation for %q: %w", p.JobID, domain.ErrNotFound)
		}
		// The entry may still be alive; answer with a server error so the
		// provider retries instead of treating the delivery as unmatched.
		return fmt.Errorf("resolve correlation for %q: %w", p.JobID, err)
	}

	log := uc.log.With().Str("job_id", entry.JobID).Str("api_job_id", p.JobID).Logger()

	switch p.Status {
	case string(model.JobStatusCompleted):
		keys, err := uc.materializeResults(ctx, entry, p.Images)
		if err != nil {
			log.Error().Err(err).Msg("result materialization failed")
			metrics.IncWebhook("materialize_error")
			return err
		}
		if err := uc.jobs.MarkCompleted(ctx, entry.JobID, keys); err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		metrics.IncWebhook("completed")
		metrics.IncJob(string(model.JobStatusCompleted))
		log.Info().Int("images", len(keys)).Msg("job completed")

	case string(model.JobStatusFailed):
		cause := p.Error
		if cause == "" {
			cause = "job failed"
		}
		if err := uc.jobs.MarkFailed(ctx, entry.JobID, cause); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		metrics.IncWebhook("failed")
		metrics.IncJob(string(model.JobStatusFailed))
		log.Info().Str("cause", cause).Msg("job failed by provider")

	default:
		// Intermediate progress report; stored verbatim, completedAt untouched.
		if err := uc.jobs.SetStatus(ctx, entry.JobID, model.JobStatus(p.Status)); err != nil {
			return fmt.Errorf("set status %q: %w", p.Status, err)
		}
		metrics.IncWebhook("progress")
		log.Debug().Str("status", p.Status).Msg("job progress update")
	}

	return nil
}

// materializeResults downloads every result image and stores it under a key
// namespaced by user and job. Downloads fan out with bounded concurrency but
// keys are recorded at their input index, preserving provider order.
func (uc *WebhookUseCase) materializeResults(ctx context.Context, entry model.CorrelationEntry, urls []string) ([]string, error) {
	keys := make([]string, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resultFetchConcurrency)
	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			data, err := uc.fetcher.Fetch(gctx, url)
			if err != nil {
				return fmt.Errorf("%w: fetch result %d: %v", domain.ErrUpstream, i+1, err)
			}
			key := path.Join("results", entry.UserID, entry.JobID, fmt.Sprintf("result_%d.jpg", i+1))
			if err := uc.blobs.Put(gctx, key, data, "image/jpeg"); err != nil {
				return fmt.Errorf("store result %d: %w", i+1, err)
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}
