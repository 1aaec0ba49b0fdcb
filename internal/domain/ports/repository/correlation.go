package repository

import (
	"context"
	"time"

	"imagine-service/internal/domain/model"
)

// CorrelationRepository holds the ephemeral mapping from a provider-issued
// job id back to the internal (jobID, userID) pair. Entries expire on their
// own after the configured TTL whether or not a webhook ever arrives.
type CorrelationRepository interface {
	// Put stores the entry under the provider job id. At most one live
	// entry exists per apiJobID.
	Put(ctx context.Context, apiJobID string, entry model.CorrelationEntry, ttl time.Duration) error
	// Resolve returns the entry for apiJobID and removes it atomically,
	// so a duplicate delivery resolves to domain.ErrNotFound.
	Resolve(ctx context.Context, apiJobID string) (model.CorrelationEntry, error)
}
