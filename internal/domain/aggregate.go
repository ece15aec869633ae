package domain

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Aggregator fetches every requested category concurrently and downloads the
// ones that succeeded.
type Aggregator struct {
	pages       *PageFetcher
	coordinator *DownloadCoordinator
	log         *zap.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(pages *PageFetcher, coordinator *DownloadCoordinator, log *zap.Logger) *Aggregator {
	return &Aggregator{pages: pages, coordinator: coordinator, log: log}
}

// Fetch fetches and filters all categories, waiting for every one of them
// to settle. Results are in the order of categories.
func (a *Aggregator) Fetch(ctx context.Context, userID int64, categories []Category) []CategoryResult {
	results := make([]CategoryResult, len(categories))

	var wg sync.WaitGroup
	for i, cat := range categories {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.log.Info("finding posts", zap.String("category", cat.Name), zap.Int("limit", cat.Limit))
			posts, err := a.pages.Fetch(ctx, PostsEndpoint(userID, cat.Name), cat.Limit)
			results[i] = CategoryResult{
				Category: cat,
				Posts:    len(posts),
				Viewable: FilterViewable(posts),
				Err:      err,
			}
		}()
	}
	wg.Wait()

	for _, r := range results {
		if !r.OK() {
			a.log.Error("category fetch failed", zap.String("category", r.Category.Name), zap.Error(r.Err))
			continue
		}
		a.log.Info("found posts",
			zap.String("category", r.Category.Name),
			zap.Int("posts", r.Posts),
			zap.Int("viewable", len(r.Viewable)),
		)
	}
	return results
}

// Run fetches all categories and downloads the successful ones. It returns
// ErrNoViewableContent, with nothing downloaded, when no successful category
// holds a viewable post. Failed categories are skipped, not retried.
func (a *Aggregator) Run(ctx context.Context, userID int64, categories []Category) (Summary, error) {
	if len(categories) == 0 {
		return Summary{}, ErrNoCategories
	}

	summary := Summary{Results: a.Fetch(ctx, userID, categories)}
	if summary.ViewableCount() == 0 {
		return summary, ErrNoViewableContent
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, r := range summary.Results {
		if !r.OK() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats := a.coordinator.Run(ctx, r.Category.Name, r.Viewable, r.Category.Archived())
			mu.Lock()
			summary.Downloads = append(summary.Downloads, stats)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return summary, nil
}
