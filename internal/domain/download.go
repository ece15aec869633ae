package domain

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the per-category limit on in-flight transfers.
const DefaultWorkers = 4

// DownloadCoordinator downloads the media of fetched posts into a FileStore.
// A destination path is handed out to at most one task over the coordinator's
// lifetime, so media listed twice, within or across categories, is fetched once.
type DownloadCoordinator struct {
	fetcher ByteFetcher
	store   FileStore
	workers int
	log     *zap.Logger

	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewDownloadCoordinator creates a coordinator running at most workers
// transfers at a time per Run.
func NewDownloadCoordinator(fetcher ByteFetcher, store FileStore, workers int, log *zap.Logger) *DownloadCoordinator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &DownloadCoordinator{
		fetcher: fetcher,
		store:   store,
		workers: workers,
		log:     log,
		claimed: make(map[string]struct{}),
	}
}

// Tasks lists the media of posts that qualify for download, are not yet
// present in the store and were not already claimed by an earlier task.
func (c *DownloadCoordinator) Tasks(posts []Post, archived bool) []DownloadTask {
	var tasks []DownloadTask
	for _, p := range posts {
		for _, m := range p.Media {
			ext, ok := Qualify(m)
			if !ok {
				continue
			}
			dst := c.store.MediaPath(archived, m, ext)

			exists, err := c.store.Exists(dst)
			if err != nil {
				c.log.Warn("stat failed", zap.Int64("media_id", m.ID), zap.String("path", dst), zap.Error(err))
				continue
			}
			if exists || !c.claim(dst) {
				continue
			}
			tasks = append(tasks, DownloadTask{Media: m, Path: dst, Archived: archived})
		}
	}
	return tasks
}

func (c *DownloadCoordinator) claim(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.claimed[path]; ok {
		return false
	}
	c.claimed[path] = struct{}{}
	return true
}

// Run downloads every missing, qualifying media of posts. A failed transfer
// is logged and counted; it never stops its siblings. Run returns once all
// dispatched transfers have settled.
func (c *DownloadCoordinator) Run(ctx context.Context, category string, posts []Post, archived bool) DownloadStats {
	tasks := c.Tasks(posts, archived)
	log := c.log.With(zap.String("category", category))
	log.Info("downloading new files", zap.Int("count", len(tasks)))

	var succeeded, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(c.workers)

	for _, task := range tasks {
		g.Go(func() error {
			if err := c.download(ctx, task); err != nil {
				failed.Add(1)
				log.Error("download failed",
					zap.Int64("media_id", task.Media.ID),
					zap.String("path", task.Path),
					zap.Error(err),
				)
				return nil
			}
			n := succeeded.Add(1)
			log.Info("downloaded",
				zap.String("path", task.Path),
				zap.Int64("done", n),
				zap.Int("total", len(tasks)),
			)
			return nil
		})
	}
	_ = g.Wait()

	return DownloadStats{
		Category:  category,
		Attempted: len(tasks),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}
}

func (c *DownloadCoordinator) download(ctx context.Context, task DownloadTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := c.fetcher.Fetch(ctx, task.Media.Source)
	if err != nil {
		return err
	}
	return c.store.Save(task.Path, data)
}
