package usecase

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"imagine-service/internal/domain"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/domain/ports/adapter"
	"imagine-service/internal/domain/ports/queue"
	"imagine-service/internal/domain/ports/repository"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// ImagineInput is the intake payload. Image bytes are already in memory;
// the upload size cap is enforced by the HTTP layer.
type ImagineInput struct {
	UserID      string
	Prompt      string
	Image       []byte
	Filename    string
	ContentType string
}

// ImagineUseCase turns an intake request into a pending job plus an enqueued
// dispatch task. Validation happens before any storage write so a rejected
// request leaves no orphaned upload behind.
type ImagineUseCase struct {
	jobs   repository.JobRepository
	blobs  adapter.BlobStore
	tasks  queue.TaskQueue
	urlTTL time.Duration
	log    *zerolog.Logger
}

func NewImagineUseCase(
	jobs repository.JobRepository,
	blobs adapter.BlobStore,
	tasks queue.TaskQueue,
	urlTTL time.Duration,
	logger *zerolog.Logger,
) *ImagineUseCase {
	l := logger.With().Str("component", "ImagineUseCase").Logger()
	return &ImagineUseCase{jobs: jobs, blobs: blobs, tasks: tasks, urlTTL: urlTTL, log: &l}
}

// Create validates input, stores the original image, creates the job in
// pending and enqueues the dispatch task. Steps are not transactional: if the
// enqueue fails after the job row exists, the job stays pending and is later
// swept by the reconciler rather than re-enqueued here.
func (uc *ImagineUseCase) Create(ctx context.Context, in ImagineInput) (string, error) {
	if len(in.Image) == 0 {
		return "", fmt.Errorf("%w: no image file provided", domain.ErrInvalidArgument)
	}
	if !strings.HasPrefix(in.ContentType, "image/") {
		return "", fmt.Errorf("%w: only image files are allowed", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", domain.ErrInvalidArgument)
	}

	jobID := uuid.NewString()

	filename := in.Filename
	if filename == "" {
		filename = "image.jpg"
	}
	key := path.Join("uploads", in.UserID, jobID, path.Base(filename))

	if err := uc.blobs.Put(ctx, key, in.Image, in.ContentType); err != nil {
		return "", fmt.Errorf("store original image: %w", err)
	}

	job := model.NewImagineJob(jobID, in.UserID, in.Prompt, key)
	if err := uc.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	// The worker hands the provider a URL, not a storage key. The TTL only
	// has to outlive queue latency plus the provider's fetch.
	signedURL, err := uc.blobs.SignedURL(key, uc.urlTTL)
	if err != nil {
		return "", fmt.Errorf("sign image url: %w", err)
	}

	task := model.DispatchTask{
		TaskID:   ulid.Make().String(),
		JobID:    jobID,
		UserID:   in.UserID,
		ImageURL: signedURL,
		Prompt:   in.Prompt,
	}
	if err := uc.tasks.Enqueue(ctx, task); err != nil {
		uc.log.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed, job left pending")
		return "", fmt.Errorf("enqueue dispatch task: %w", err)
	}

	uc.log.Info().Str("job_id", jobID).Str("user_id", in.UserID).Msg("imagine job accepted")
	return jobID, nil
}
