package usecase

import (
	"context"
	"fmt"
	"time"

	"imagine-service/internal/domain"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/domain/ports/adapter"
	"imagine-service/internal/domain/ports/repository"
	"imagine-service/internal/infra/logging"
	"imagine-service/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// DispatchUseCase drives one job from pending toward awaiting_completion or
// failed. Per job the dispatch worker is the sole writer until the webhook
// phase begins, so the only guard needed here is the repository's
// compare-and-set semantics.
type DispatchUseCase struct {
	jobs        repository.JobRepository
	correlation repository.CorrelationRepository
	client      adapter.GenerationClient
	webhookURL  string
	ttl         time.Duration
	log         *zerolog.Logger
}

func NewDispatchUseCase(
	jobs repository.JobRepository,
	correlation repository.CorrelationRepository,
	client adapter.GenerationClient,
	webhookURL string,
	correlationTTL time.Duration,
	logger *zerolog.Logger,
) *DispatchUseCase {
	l := logger.With().Str("component", "DispatchUseCase").Logger()
	return &DispatchUseCase{
		jobs:        jobs,
		correlation: correlation,
		client:      client,
		webhookURL:  webhookURL,
		ttl:         correlationTTL,
		log:         &l,
	}
}

// Process submits one dispatch task to the provider. A provider failure is
// terminal for the job: the status moves to failed with the cause recorded,
// no correlation entry is ever written, and the error is swallowed so the
// worker loop keeps running. Only infrastructure errors propagate.
func (uc *DispatchUseCase) Process(ctx context.Context, task *model.DispatchTask) error {
	defer logging.TraceDuration(uc.log, "DispatchUseCase.Process")()

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	if err := uc.jobs.MarkProcessing(ctx, task.JobID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	start := time.Now()
	apiJobID, err := uc.client.Submit(ctx, adapter.SubmitRequest{
		Prompt:     task.Prompt,
		ImageURL:   task.ImageURL,
		WebhookURL: uc.webhookURL,
	})
	metrics.ObserveDispatch(time.Since(start), err == nil)

	if err != nil {
		uc.log.Error().Err(err).Str("job_id", task.JobID).Msg("provider submission failed")
		cause := fmt.Sprintf("%v: %v", domain.ErrUpstream, err)
		if ferr := uc.jobs.MarkFailed(ctx, task.JobID, cause); ferr != nil {
			return fmt.Errorf("mark failed after submit error: %w", ferr)
		}
		metrics.IncJob(string(model.JobStatusFailed))
		return nil
	}

	if err := uc.jobs.MarkAwaitingCompletion(ctx, task.JobID, apiJobID); err != nil {
		return fmt.Errorf("mark awaiting_completion: %w", err)
	}

	entry := model.CorrelationEntry{JobID: task.JobID, UserID: task.UserID}
	if err := uc.correlation.Put(ctx, apiJobID, entry, uc.ttl); err != nil {
		// Without the entry the webhook can never be matched; surface the
		// job as failed instead of leaving it silently orphaned.
		uc.log.Error().Err(err).Str("job_id", task.JobID).Msg("correlation store write failed")
		if ferr := uc.jobs.MarkFailed(ctx, task.JobID, "correlation store unavailable"); ferr != nil {
			return fmt.Errorf("mark failed after correlation error: %w", ferr)
		}
		metrics.IncJob(string(model.JobStatusFailed))
		return nil
	}

	uc.log.Info().
		Str("job_id", task.JobID).
		Str("api_job_id", apiJobID).
		Msg("job dispatched, awaiting completion webhook")
	return nil
}
