package sched

import (
	"context"
	"time"

	"imagine-service/internal/config"
	"imagine-service/internal/domain/model"
	"imagine-service/internal/domain/ports/repository"
	"imagine-service/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Reconciler periodically fails jobs that can no longer make progress:
// pending jobs whose dispatch task was lost, processing jobs whose worker
// died or failed on infrastructure mid-dispatch, and awaiting_completion
// jobs whose correlation entry has expired so no webhook can ever match
// them.
// It touches nothing the live intake/dispatch/webhook paths still own --
// the age horizons must exceed the queue latency and the correlation TTL.
type Reconciler struct {
	interval       time.Duration
	pendingMaxAge  time.Duration
	awaitingMaxAge time.Duration
	jobs           repository.JobRepository
	log            *zerolog.Logger
}

func NewReconciler(cfg config.ReconcilerConfig, jobs repository.JobRepository, logger *zerolog.Logger) *Reconciler {
	l := logger.With().Str("component", "Reconciler").Logger()
	return &Reconciler{
		interval:       cfg.Interval,
		pendingMaxAge:  cfg.PendingMaxAge,
		awaitingMaxAge: cfg.AwaitingMaxAge,
		jobs:           jobs,
		log:            &l,
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	r.log.Info().Msg("starting reconciler")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("stopping reconciler")
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	now := time.Now()

	n, err := r.jobs.FailStuck(ctx, model.JobStatusPending, now.Add(-r.pendingMaxAge),
		"dispatch never started")
	if err != nil {
		r.log.Error().Err(err).Msg("pending sweep failed")
	} else if n > 0 {
		metrics.AddReconciled(string(model.JobStatusPending), n)
		r.log.Warn().Int("count", n).Msg("stuck pending jobs failed")
	}

	n, err = r.jobs.FailStuck(ctx, model.JobStatusProcessing, now.Add(-r.pendingMaxAge),
		"dispatch interrupted")
	if err != nil {
		r.log.Error().Err(err).Msg("processing sweep failed")
	} else if n > 0 {
		metrics.AddReconciled(string(model.JobStatusProcessing), n)
		r.log.Warn().Int("count", n).Msg("stuck processing jobs failed")
	}

	n, err = r.jobs.FailStuck(ctx, model.JobStatusAwaitingCompletion, now.Add(-r.awaitingMaxAge),
		"completion webhook never arrived")
	if err != nil {
		r.log.Error().Err(err).Msg("awaiting_completion sweep failed")
	} else if n > 0 {
		metrics.AddReconciled(string(model.JobStatusAwaitingCompletion), n)
		r.log.Warn().Int("count", n).Msg("orphaned awaiting_completion jobs failed")
	}
}
