package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"imagine-service/internal/domain"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/domain/ports/repository"
)

var _ repository.CorrelationRepository = (*CorrelationRepo)(nil)

// CorrelationRepo keeps webhook correlation entries in Redis under
// job:<apiJobID>. Entries expire on their own after the TTL; Resolve
// consumes the entry so at most one webhook delivery can match it.
type CorrelationRepo struct {
	client RedisClient
}

func NewCorrelationRepo(client RedisClient) *CorrelationRepo {
	return &CorrelationRepo{client: client}
}

func correlationKey(apiJobID string) string {
	return fmt.Sprintf("job:%s", apiJobID)
}

func (r *CorrelationRepo) Put(ctx context.Context, apiJobID string, entry model.CorrelationEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, correlationKey(apiJobID), data, ttl)
}

func (r *CorrelationRepo) Resolve(ctx context.Context, apiJobID string) (model.CorrelationEntry, error) {
	var entry model.CorrelationEntry
	data, err := r.client.GetDel(ctx, correlationKey(apiJobID))
	if err != nil {
		if IsNil(err) {
			return entry, domain.ErrNotFound
		}
		return entry, err
	}
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return entry, fmt.Errorf("decode correlation entry: %w", err)
	}
	return entry, nil
}
