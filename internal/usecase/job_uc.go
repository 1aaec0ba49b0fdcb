package usecase

import (
	"context"
	"fmt"
	"time"

	"imagine-service/internal/domain"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/domain/ports/adapter"
	"imagine-service/internal/domain/ports/repository"
)

// JobView is the read model returned to clients. Storage keys never leave
// the service; images are exposed as short-lived signed URLs resolved at
// read time.
type JobView struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	Type             string     `json:"type"`
	Prompt           string     `json:"prompt"`
	OriginalImageURL string     `json:"originalImageUrl,omitempty"`
	ResultImageURLs  []string   `json:"resultImageUrls"`
	CreatedAt        time.Time  `json:"createdAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// JobSummary is the slim shape used in history listings.
type JobSummary struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Type        string     `json:"type"`
	Prompt      string     `json:"prompt"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// JobUseCase is the read-only query surface over the job repository.
type JobUseCase struct {
	jobs   repository.JobRepository
	blobs  adapter.BlobStore
	urlTTL time.Duration
}

func NewJobUseCase(jobs repository.JobRepository, blobs adapter.BlobStore, urlTTL time.Duration) *JobUseCase {
	return &JobUseCase{jobs: jobs, blobs: blobs, urlTTL: urlTTL}
}

// Get returns a single job, enforcing ownership: a caller identity different
// from the job's owner gets domain.ErrForbidden regardless of job status.
func (uc *JobUseCase) Get(ctx context.Context, callerID, jobID string) (*JobView, error) {
	job, err := uc.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != callerID {
		return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrForbidden)
	}

	view := &JobView{
		ID:              job.ID,
		Status:          string(job.Status),
		Type:            string(job.Type),
		Prompt:          job.Prompt,
		ResultImageURLs: make([]string, 0, len(job.ResultImageKeys)),
		CreatedAt:       job.CreatedAt,
		CompletedAt:     job.CompletedAt,
		Error:           job.Error,
	}
	if job.OriginalImageKey != "" {
		u, err := uc.blobs.SignedURL(job.OriginalImageKey, uc.urlTTL)
		if err != nil {
			return nil, fmt.Errorf("sign original image url: %w", err)
		}
		view.OriginalImageURL = u
	}
	for _, key := range job.ResultImageKeys {
		u, err := uc.blobs.SignedURL(key, uc.urlTTL)
		if err != nil {
			return nil, fmt.Errorf("sign result image url: %w", err)
		}
		view.ResultImageURLs = append(view.ResultImageURLs, u)
	}
	return view, nil
}

// List returns the caller's job history, newest first, optionally filtered
// by status. Page numbering starts at 1.
func (uc *JobUseCase) List(ctx context.Context, callerID string, status model.JobStatus, page, limit int) ([]JobSummary, int, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	jobs, total, err := uc.jobs.List(ctx, repository.JobFilter{
		UserID: callerID,
		Status: status,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobSummary{
			ID:          j.ID,
			Status:      string(j.Status),
			Type:        string(j.Type),
			Prompt:      j.Prompt,
			CreatedAt:   j.CreatedAt,
			CompletedAt: j.CompletedAt,
		})
	}
	return out, total, nil
}
