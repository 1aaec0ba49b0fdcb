package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imagine-service/internal/domain"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.JobRepository = (*jobRepo)(nil)

// jobRepo persists jobs in the `jobs` table (see schema.sql). Every
// status-changing statement carries its expected-source predicate, so a lost
// race surfaces as zero rows affected instead of a blind overwrite.
type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, user_id, type, status, prompt, original_image_key, api_job_id, result_image_keys, error, created_at, completed_at`

func (r *jobRepo) Create(ctx context.Context, job *model.Job) error {
	const q = `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`

	keys := job.ResultImageKeys
	if keys == nil {
		keys = []string{}
	}
	_, err := r.pool.Exec(ctx, q,
		job.ID, job.UserID, string(job.Type), string(job.Status), job.Prompt,
		job.OriginalImageKey, job.APIJobID, keys, job.Error,
		job.CreatedAt, job.CompletedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	return scanJob(r.pool.QueryRow(ctx, q, id))
}

func (r *jobRepo) List(ctx context.Context, f repository.JobFilter) ([]*model.Job, int, error) {
	offset := (f.Page - 1) * f.Limit

	var (
		rows  pgx.Rows
		total int
		err   error
	)
	if f.Status != "" {
		const q = `SELECT ` + jobColumns + ` FROM jobs
WHERE user_id = $1 AND status = $2
ORDER BY created_at DESC LIMIT $3 OFFSET $4;`
		rows, err = r.pool.Query(ctx, q, f.UserID, string(f.Status), f.Limit, offset)
		if err != nil {
			return nil, 0, err
		}
		defer rows.Close()
		if cerr := r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM jobs WHERE user_id = $1 AND status = $2;`,
			f.UserID, string(f.Status)).Scan(&total); cerr != nil {
			return nil, 0, cerr
		}
	} else {
		const q = `SELECT ` + jobColumns + ` FROM jobs
WHERE user_id = $1
ORDER BY created_at DESC LIMIT $2 OFFSET $3;`
		rows, err = r.pool.Query(ctx, q, f.UserID, f.Limit, offset)
		if err != nil {
			return nil, 0, err
		}
		defer rows.Close()
		if cerr := r.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM jobs WHERE user_id = $1;`, f.UserID).Scan(&total); cerr != nil {
			return nil, 0, cerr
		}
	}

	var out []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, job)
	}
	return out, total, rows.Err()
}

func (r *jobRepo) MarkProcessing(ctx context.Context, id string) error {
	const q = `UPDATE jobs SET status = 'processing' WHERE id = $1 AND status = 'pending';`
	return r.guarded(ctx, q, id)
}

func (r *jobRepo) MarkAwaitingCompletion(ctx context.Context, id, apiJobID string) error {
	const q = `
UPDATE jobs SET status = 'awaiting_completion', api_job_id = $2
WHERE id = $1 AND status = 'processing';`
	return r.guarded(ctx, q, id, apiJobID)
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id string, resultKeys []string) error {
	const q = `
UPDATE jobs SET status = 'completed', result_image_keys = $2, completed_at = now()
WHERE id = $1 AND status NOT IN ('completed', 'failed');`
	return r.guarded(ctx, q, id, resultKeys)
}

func (r *jobRepo) MarkFailed(ctx context.Context, id, cause string) error {
	const q = `
UPDATE jobs SET status = 'failed', error = $2, completed_at = now()
WHERE id = $1 AND status NOT IN ('completed', 'failed');`
	return r.guarded(ctx, q, id, cause)
}

func (r *jobRepo) SetStatus(ctx context.Context, id string, status model.JobStatus) error {
	if status.IsTerminal() {
		return fmt.Errorf("%w: %q must go through MarkCompleted/MarkFailed", domain.ErrInvalidArgument, status)
	}
	const q = `
UPDATE jobs SET status = $2
WHERE id = $1 AND status NOT IN ('completed', 'failed');`
	return r.guarded(ctx, q, id, string(status))
}

func (r *jobRepo) FailStuck(ctx context.Context, status model.JobStatus, olderThan time.Time, cause string) (int, error) {
	const q = `
UPDATE jobs SET status = 'failed', error = $3, completed_at = now()
WHERE status = $1 AND created_at < $2;`
	ct, err := r.pool.Exec(ctx, q, string(status), olderThan, cause)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// guarded runs a compare-and-set update and translates "no row moved" into
// a domain error the caller can branch on.
func (r *jobRepo) guarded(ctx context.Context, q, id string, args ...interface{}) error {
	var ct pgconn.CommandTag
	ct, err := r.pool.Exec(ctx, q, append([]interface{}{id}, args...)...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, ferr := r.FindByID(ctx, id); errors.Is(ferr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job      model.Job
		typ      string
		status   string
		keys     []string
		finished *time.Time
	)
	err := row.Scan(
		&job.ID, &job.UserID, &typ, &status, &job.Prompt,
		&job.OriginalImageKey, &job.APIJobID, &keys, &job.Error,
		&job.CreatedAt, &finished,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Type = model.JobType(typ)
	job.Status = model.JobStatus(status)
	job.ResultImageKeys = keys
	job.CompletedAt = finished
	return &job, nil
}
