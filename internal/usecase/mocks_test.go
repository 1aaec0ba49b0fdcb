// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"imagine-service/internal/domain"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/domain/ports/adapter"
	"imagine-service/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memJobRepo is an in-memory JobRepository with the same compare-and-set
// semantics as the Postgres implementation.
type memJobRepo struct {
	mu        sync.RWMutex
	store     map[string]*model.Job
	createErr error // used by tests to simulate write failures
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.Job)}
}

func (m *memJobRepo) Create(ctx context.Context, job *model.Job) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[job.ID]; ok {
		return domain.ErrConflict
	}
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) List(ctx context.Context, f repository.JobFilter) ([]*model.Job, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*model.Job
	for _, j := range m.store {
		if j.UserID != f.UserID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		cp := *j
		matched = append(matched, &cp)
	}
	// Newest first, like the SQL ORDER BY created_at DESC.
	for i := 0; i < len(matched); i++ {
		for k := i + 1; k < len(matched); k++ {
			if matched[k].CreatedAt.After(matched[i].CreatedAt) {
				matched[i], matched[k] = matched[k], matched[i]
			}
		}
	}
	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *memJobRepo) transition(id string, from model.JobStatus, mutate func(*model.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status != from {
		return fmt.Errorf("job %s in %s: %w", id, j.Status, domain.ErrConflict)
	}
	mutate(j)
	return nil
}

func (m *memJobRepo) MarkProcessing(ctx context.Context, id string) error {
	return m.transition(id, model.JobStatusPending, func(j *model.Job) {
		j.Status = model.JobStatusProcessing
	})
}

func (m *memJobRepo) MarkAwaitingCompletion(ctx context.Context, id, apiJobID string) error {
	return m.transition(id, model.JobStatusProcessing, func(j *model.Job) {
		j.Status = model.JobStatusAwaitingCompletion
		j.APIJobID = apiJobID
	})
}

func (m *memJobRepo) MarkCompleted(ctx context.Context, id string, resultKeys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.IsTerminal() {
		return fmt.Errorf("job %s already %s: %w", id, j.Status, domain.ErrConflict)
	}
	now := time.Now()
	j.Status = model.JobStatusCompleted
	j.ResultImageKeys = append([]string(nil), resultKeys...)
	j.CompletedAt = &now
	return nil
}

func (m *memJobRepo) MarkFailed(ctx context.Context, id, cause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.IsTerminal() {
		return fmt.Errorf("job %s already %s: %w", id, j.Status, domain.ErrConflict)
	}
	now := time.Now()
	j.Status = model.JobStatusFailed
	j.Error = cause
	j.CompletedAt = &now
	return nil
}

func (m *memJobRepo) SetStatus(ctx context.Context, id string, status model.JobStatus) error {
	if status.IsTerminal() {
		return domain.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.IsTerminal() {
		return fmt.Errorf("job %s already %s: %w", id, j.Status, domain.ErrConflict)
	}
	j.Status = status
	return nil
}

func (m *memJobRepo) FailStuck(ctx context.Context, status model.JobStatus, olderThan time.Time, cause string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now()
	for _, j := range m.store {
		if j.Status == status && j.CreatedAt.Before(olderThan) {
			j.Status = model.JobStatusFailed
			j.Error = cause
			j.CompletedAt = &now
			n++
		}
	}
	return n, nil
}

// memCorrelationRepo mirrors the Redis GETDEL behavior: Resolve consumes.
type memCorrelationRepo struct {
	mu         sync.Mutex
	entries    map[string]model.CorrelationEntry
	putErr     error
	resolveErr error
}

func newMemCorrelationRepo() *memCorrelationRepo {
	return &memCorrelationRepo{entries: make(map[string]model.CorrelationEntry)}
}

func (m *memCorrelationRepo) Put(ctx context.Context, apiJobID string, entry model.CorrelationEntry, ttl time.Duration) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[apiJobID] = entry
	return nil
}

func (m *memCorrelationRepo) Resolve(ctx context.Context, apiJobID string) (model.CorrelationEntry, error) {
	if m.resolveErr != nil {
		return model.CorrelationEntry{}, m.resolveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[apiJobID]
	if !ok {
		return model.CorrelationEntry{}, domain.ErrNotFound
	}
	delete(m.entries, apiJobID)
	return e, nil
}

type memBlob struct {
	data        []byte
	contentType string
}

type memBlobStore struct {
	mu     sync.RWMutex
	blobs  map[string]memBlob
	putErr error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string]memBlob)}
}

func (m *memBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = memBlob{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *memBlobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return b.data, b.contentType, nil
}

func (m *memBlobStore) SignedURL(key string, ttl time.Duration) (string, error) {
	return "https://files.test/signed/" + key, nil
}

type memQueue struct {
	mu         sync.Mutex
	tasks      []model.DispatchTask
	enqueueErr error
}

func newMemQueue() *memQueue { return &memQueue{} }

func (m *memQueue) Enqueue(ctx context.Context, task model.DispatchTask) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *memQueue) Dequeue(ctx context.Context) (*model.DispatchTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil, context.Canceled
	}
	t := m.tasks[0]
	m.tasks = m.tasks[1:]
	return &t, nil
}

func (m *memQueue) Ack(ctx context.Context, task *model.DispatchTask) error { return nil }
func (m *memQueue) Recover(ctx context.Context) (int, error)                { return 0, nil }
func (m *memQueue) Close() error                                            { return nil }

// fakeGenerationClient returns a canned provider job id or error.
type fakeGenerationClient struct {
	mu       sync.Mutex
	apiJobID string
	err      error
	requests []adapter.SubmitRequest
}

func (f *fakeGenerationClient) Submit(ctx context.Context, req adapter.SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests = append(f.requests, req)
	return f.apiJobID, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	fetched []string
	err     error
	payload []byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.fetched = append(f.fetched, url)
	if f.payload != nil {
		return f.payload, nil
	}
	return []byte("jpeg-bytes:" + url), nil
}
