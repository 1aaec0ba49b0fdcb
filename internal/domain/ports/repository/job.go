package repository

import (
	"context"
	"time"

	"imagine-service/internal/domain/model"
)

// JobFilter narrows List results. Status == "" means any status.
type JobFilter struct {
	UserID string
	Status model.JobStatus
	Page   int
	Limit  int
}

// JobRepository is the single owner of Job records. All status-changing
// methods are compare-and-set: they refuse to move a job out of a terminal
// status, and transition methods that name an expected source status fail
// with domain.ErrConflict when another writer got there first.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	FindByID(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, f JobFilter) ([]*model.Job, int, error)

	// MarkProcessing moves pending -> processing.
	MarkProcessing(ctx context.Context, id string) error
	// MarkAwaitingCompletion records the provider job id and moves
	// processing -> awaiting_completion.
	MarkAwaitingCompletion(ctx context.Context, id, apiJobID string) error
	// MarkCompleted records result keys in provider order and sets
	// completedAt. Terminal.
	MarkCompleted(ctx context.Context, id string, resultKeys []string) error
	// MarkFailed records the failure cause and sets completedAt. Terminal.
	MarkFailed(ctx context.Context, id, cause string) error
	// SetStatus stores an intermediate provider-reported status verbatim.
	// It never touches completedAt and never overwrites a terminal status.
	SetStatus(ctx context.Context, id string, status model.JobStatus) error

	// FailStuck terminally fails every job that has sat in the given status
	// since before olderThan, recording cause. Returns the number of jobs
	// swept. Used by the reconciler, never by the request path.
	FailStuck(ctx context.Context, status model.JobStatus, olderThan time.Time, cause string) (int, error)
}
