// File: internal/infra/web/mocks_test.go
package web

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"imagine-service/internal/config"
	"imagine-service/internal/domain"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/domain/ports/repository"
	red "imagine-service/internal/infra/redis"
	"imagine-service/internal/infra/storage"
	"imagine-service/internal/usecase"

	"github.com/rs/zerolog"
)

// memJobRepo is a minimal in-memory JobRepository for handler tests.
type memJobRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Job
}

func newMemJobRepo() *memJobRepo { return &memJobRepo{store: make(map[string]*model.Job)} }

func (m *memJobRepo) Create(ctx context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	var out []*model.Job
	for _, j := range m.store {
		if j.UserID != f.UserID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memJobRepo) mutate(id string, fn func(*model.Job) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	return fn(j)
}

func (m *memJobRepo) MarkProcessing(ctx context.Context, id string) error {
	return m.mutate(id, func(j *model.Job) error {
		j.Status = model.JobStatusProcessing
		return nil
	})
}

func (m *memJobRepo) MarkAwaitingCompletion(ctx context.Context, id, apiJobID string) error {
	return m.mutate(id, func(j *model.Job) error {
		j.Status = model.JobStatusAwaitingCompletion
		j.APIJobID = apiJobID
		return nil
	})
}

func (m *memJobRepo) MarkCompleted(ctx context.Context, id string, resultKeys []string) error {
	return m.mutate(id, func(j *model.Job) error {
		if j.Status.IsTerminal() {
			return fmt.Errorf("job %s already %s: %w", id, j.Status, domain.ErrConflict)
		}
		now := time.Now()
		j.Status = model.JobStatusCompleted
		j.ResultImageKeys = append([]string(nil), resultKeys...)
		j.CompletedAt = &now
		return nil
	})
}

func (m *memJobRepo) MarkFailed(ctx context.Context, id, cause string) error {
	return m.mutate(id, func(j *model.Job) error {
		if j.Status.IsTerminal() {
			return fmt.Errorf("job %s already %s: %w", id, j.Status, domain.ErrConflict)
		}
		now := time.Now()
		j.Status = model.JobStatusFailed
		j.Error = cause
		j.CompletedAt = &now
		return nil
	})
}

func (m *memJobRepo) SetStatus(ctx context.Context, id string, status model.JobStatus) error {
	return m.mutate(id, func(j *model.Job) error {
		j.Status = status
		return nil
	})
}

func (m *memJobRepo) FailStuck(ctx context.Context, status model.JobStatus, olderThan time.Time, cause string) (int, error) {
	return 0, nil
}

type memCorrelationRepo struct {
	mu         sync.Mutex
	entries    map[string]model.CorrelationEntry
	resolveErr error
}

func newMemCorrelationRepo() *memCorrelationRepo {
	return &memCorrelationRepo{entries: make(map[string]model.CorrelationEntry)}
}

func (m *memCorrelationRepo) Put(ctx context.Context, apiJobID string, entry model.CorrelationEntry, ttl time.Duration) error {
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

type memQueue struct {
	mu    sync.Mutex
	tasks []model.DispatchTask
}

func (m *memQueue) Enqueue(ctx context.Context, task model.DispatchTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *memQueue) Dequeue(ctx context.Context) (*model.DispatchTask, error) {
	return nil, context.Canceled
}
func (m *memQueue) Ack(ctx context.Context, task *model.DispatchTask) error { return nil }
func (m *memQueue) Recover(ctx context.Context) (int, error)                { return 0, nil }
func (m *memQueue) Close() error                                            { return nil }

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return []byte("jpeg-bytes"), nil
}

// fakeRedis backs the rate limiter with an in-memory counter.
type fakeRedis struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newFakeRedis() *fakeRedis { return &fakeRedis{counters: make(map[string]int64)} }

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }
func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (f *fakeRedis) Get(ctx context.Context, key string) (string, error)    { return "", nil }
func (f *fakeRedis) GetDel(ctx context.Context, key string) (string, error) { return "", nil }
func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	return f.counters[key], nil
}
func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (f *fakeRedis) Del(ctx context.Context, keys ...string) error { return nil }
func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) error {
	return nil
}
func (f *fakeRedis) BRPopLPush(ctx context.Context, source, destination string, timeout time.Duration) (string, error) {
	return "", nil
}
func (f *fakeRedis) RPopLPush(ctx context.Context, source, destination string) (string, error) {
	return "", nil
}
func (f *fakeRedis) LRem(ctx context.Context, key string, count int64, value interface{}) error {
	return nil
}
func (f *fakeRedis) Close() error { return nil }

var _ red.RedisClient = (*fakeRedis)(nil)

// serverDeps bundles the mocks behind a test server so handler tests can
// seed and assert state.
type serverDeps struct {
	jobs        *memJobRepo
	correlation *memCorrelationRepo
	tasks       *memQueue
	files       *storage.FileStore
	cfg         *config.Config
}

func newTestServer(t *testing.T, mutateCfg func(*config.Config)) (*Server, *serverDeps) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.PublicBaseURL = "https://svc.test"
	cfg.Auth.JWTSecret = "" // dev header auth unless a test overrides
	cfg.Limits.MaxUploadBytes = 10 << 20
	cfg.Limits.IntakePerMinute = 100
	cfg.Storage.URLTTL = 15 * time.Minute
	cfg.Runtime.Dev = true
	if mutateCfg != nil {
		mutateCfg(cfg)
	}

	files, err := storage.NewFileStore(t.TempDir(), cfg.Server.PublicBaseURL, "file-secret")
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	deps := &serverDeps{
		jobs:        newMemJobRepo(),
		correlation: newMemCorrelationRepo(),
		tasks:       &memQueue{},
		files:       files,
		cfg:         cfg,
	}

	logger := zerolog.Nop()
	imagineUC := usecase.NewImagineUseCase(deps.jobs, files, deps.tasks, cfg.Storage.URLTTL, &logger)
	webhookUC := usecase.NewWebhookUseCase(deps.jobs, deps.correlation, files, fakeFetcher{}, &logger)
	jobUC := usecase.NewJobUseCase(deps.jobs, files, cfg.Storage.URLTTL)

	limiter := red.NewRateLimiter(newFakeRedis())
	srv := NewServer(imagineUC, jobUC, webhookUC, files, limiter, cfg, &logger)
	return srv, deps
}
