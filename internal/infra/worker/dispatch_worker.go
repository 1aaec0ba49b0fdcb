package worker

import (
	"context"
	"errors"
	"time"

	"imagine-service/internal/domain"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/domain/ports/queue"
	"imagine-service/internal/infra/logging"
	"imagine-service/internal/usecase"

	"github.com/rs/zerolog"
)

// DispatchWorker pulls dispatch tasks off the queue and runs them through
// the dispatch use case on the pool. Tasks are acked once handled; a task
// that fails on infrastructure stays parked in the processing list so it is
// not lost with the worker.
type DispatchWorker struct {
	tasks      queue.TaskQueue
	dispatchUC *usecase.DispatchUseCase
	log        *zerolog.Logger
}

func NewDispatchWorker(tasks queue.TaskQueue, dispatchUC *usecase.DispatchUseCase, logger *zerolog.Logger) *DispatchWorker {
	l := logger.With().Str("component", "DispatchWorker").Logger()
	return &DispatchWorker{tasks: tasks, dispatchUC: dispatchUC, log: &l}
}

// Start runs the fetch loop until ctx is cancelled. It should be run in a
// goroutine; per-task concurrency comes from the pool.
func (w *DispatchWorker) Start(ctx context.Context, pool *Pool) {
	w.log.Info().Msg("dispatch worker started")
	for {
		task, err := w.tasks.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info().Msg("dispatch worker stopping")
				return
			}
			w.log.Error().Err(err).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}

		t := task
		err = pool.Submit(ctx, func(ctx context.Context) error {
			w.processOne(ctx, t)
			return nil
		})
		if err != nil {
			// Shutdown race: the task stays parked and is recovered later.
			w.log.Warn().Err(err).Str("job_id", t.JobID).Msg("submit failed, task left parked")
			return
		}
	}
}

func (w *DispatchWorker) processOne(ctx context.Context, task *model.DispatchTask) {
	ctx = logging.WithJobID(ctx, task.JobID)
	start := time.Now()
	err := w.dispatchUC.Process(ctx, task)

	switch {
	case err == nil:
		w.ack(ctx, task)
		w.log.Info().Str("job_id", task.JobID).Dur("duration", time.Since(start)).Msg("dispatch task handled")
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotFound):
		// Unprocessable or already handled elsewhere; retrying cannot help.
		w.ack(ctx, task)
		w.log.Warn().Err(err).Str("job_id", task.JobID).Msg("dispatch task discarded")
	default:
		// Infrastructure failure: leave the task parked for recovery.
		w.log.Error().Err(err).Str("job_id", task.JobID).Msg("dispatch task failed, left parked")
	}
}

func (w *DispatchWorker) ack(ctx context.Context, task *model.DispatchTask) {
	if err := w.tasks.Ack(ctx, task); err != nil {
		w.log.Error().Err(err).Str("job_id", task.JobID).Msg("ack failed")
	}
}
