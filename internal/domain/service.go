package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncOptions tune a sync run.
type SyncOptions struct {
	PageLimit int
	Workers   int
}

// SyncService orchestrates a full profile sync: resolve users, persist the
// profile info, fetch and download every category and record the run.
type SyncService struct {
	api      API
	fetcher  ByteFetcher
	storeFor func(profile string) FileStore
	repo     RunRepository
	opts     SyncOptions
	log      *zap.Logger
}

// NewSyncService creates a new SyncService.
func NewSyncService(api API, fetcher ByteFetcher, storeFor func(profile string) FileStore, repo RunRepository, opts SyncOptions, log *zap.Logger) *SyncService {
	return &SyncService{
		api:      api,
		fetcher:  fetcher,
		storeFor: storeFor,
		repo:     repo,
		opts:     opts,
		log:      log,
	}
}

// Sync downloads the content of profile for the given categories. The
// returned run is recorded in the repository whether or not Sync fails.
func (s *SyncService) Sync(ctx context.Context, profile string, categories []Category) (*Run, error) {
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}

	run := &Run{
		ID:        uuid.NewString(),
		Profile:   profile,
		Status:    RunRunning,
		StartedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	log := s.log.With(zap.String("run_id", run.ID), zap.String("profile", profile))
	summary, err := s.sync(ctx, log, profile, categories)
	run.Categories = runCategories(summary)
	run.FinishedAt = time.Now()
	run.Status = RunCompleted
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
	}

	// The caller's context may already be cancelled; the record must still land.
	if ferr := s.repo.Finish(context.WithoutCancel(ctx), run); ferr != nil {
		log.Warn("failed to record run result", zap.Error(ferr))
	}
	return run, err
}

func (s *SyncService) sync(ctx context.Context, log *zap.Logger, profile string, categories []Category) (Summary, error) {
	log.Info("getting user auth info")
	me, err := s.api.User(ctx, "me")
	if err != nil {
		return Summary{}, fmt.Errorf("resolve logged in user: %w", err)
	}
	log.Info("got user", zap.String("name", me.Name))
	api := s.api.AsUser(me.ID)

	log.Info("getting target profile info")
	target, err := api.User(ctx, profile)
	if err != nil {
		return Summary{}, fmt.Errorf("resolve profile %q: %w", profile, err)
	}
	log.Info("got target profile", zap.String("name", target.Name), zap.Int64("id", target.ID))

	store := s.storeFor(profile)
	saved, err := store.SaveProfile(target)
	switch {
	case err != nil:
		return Summary{}, fmt.Errorf("save profile info: %w", err)
	case saved:
		log.Info("profile info saved")
	default:
		log.Info("profile info exists, resuming download")
	}

	agg := NewAggregator(
		NewPageFetcher(api, s.opts.PageLimit),
		NewDownloadCoordinator(s.fetcher, store, s.opts.Workers, log),
		log,
	)
	summary, err := agg.Run(ctx, target.ID, categories)
	if errors.Is(err, ErrNoViewableContent) {
		log.Error("no viewable post found")
	}
	return summary, err
}

// Get retrieves a recorded run by ID.
func (s *SyncService) Get(ctx context.Context, id string) (*Run, error) {
	return s.repo.Get(ctx, id)
}

// Recent returns the most recent runs, newest first.
func (s *SyncService) Recent(ctx context.Context, limit int) ([]Run, error) {
	return s.repo.Recent(ctx, limit)
}

// RecoverStale marks runs left running by a previous crash as interrupted.
func (s *SyncService) RecoverStale(ctx context.Context) (int64, error) {
	return s.repo.RecoverStale(ctx)
}

func runCategories(summary Summary) []RunCategory {
	out := make([]RunCategory, 0, len(summary.Results))
	for _, r := range summary.Results {
		rc := RunCategory{
			Name:     r.Category.Name,
			Posts:    r.Posts,
			Viewable: len(r.Viewable),
		}
		if r.Err != nil {
			rc.Error = r.Err.Error()
		}
		if d, ok := summary.DownloadsFor(r.Category.Name); ok {
			rc.Attempted = d.Attempted
			rc.Succeeded = d.Succeeded
			rc.Failed = d.Failed
		}
		out = append(out, rc)
	}
	return out
}
