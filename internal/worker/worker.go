package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cwygoda/feedgrab/internal/domain"
)

// Syncer runs one profile sync.
type Syncer interface {
	Sync(ctx context.Context, profile string, categories []domain.Category) (*domain.Run, error)
}

// Worker re-syncs a profile on a fixed interval.
type Worker struct {
	svc        Syncer
	profile    string
	categories []domain.Category
	interval   time.Duration
	log        *zap.Logger
}

// New creates a new worker.
func New(svc Syncer, profile string, categories []domain.Category, interval time.Duration, log *zap.Logger) *Worker {
	return &Worker{
		svc:        svc,
		profile:    profile,
		categories: categories,
		interval:   interval,
		log:        log.With(zap.String("profile", profile)),
	}
}

// Run syncs once immediately, then on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sync(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker shutting down")
			return
		case <-ticker.C:
			w.sync(ctx)
		}
	}
}

func (w *Worker) sync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	run, err := w.svc.Sync(ctx, w.profile, w.categories)
	switch {
	case errors.Is(err, domain.ErrNoViewableContent):
		w.log.Warn("nothing to download this round")
	case err != nil:
		w.log.Error("sync failed", zap.Error(err))
	default:
		w.log.Info("sync completed",
			zap.String("run_id", run.ID),
			zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)),
		)
	}
}
