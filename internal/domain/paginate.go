package domain

import (
	"context"
	"fmt"
)

// DefaultPageLimit is the largest page the feed endpoint serves.
const DefaultPageLimit = 10

// PageFetcher assembles a bounded number of posts from a paginated feed.
type PageFetcher struct {
	src       FeedSource
	pageLimit int
}

// NewPageFetcher creates a PageFetcher. A non-positive pageLimit falls back
// to DefaultPageLimit.
func NewPageFetcher(src FeedSource, pageLimit int) *PageFetcher {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	return &PageFetcher{src: src, pageLimit: pageLimit}
}

// Fetch returns up to target posts from endpoint, newest first. Fewer are
// returned when the feed runs out. Any failure discards the pages collected
// so far.
func (f *PageFetcher) Fetch(ctx context.Context, endpoint string, target int) ([]Post, error) {
	if target <= 0 {
		return nil, nil
	}

	cur := Cursor{Remaining: target}
	size := min(target, f.pageLimit)
	var posts []Post

	for {
		page, err := f.src.Posts(ctx, endpoint, size, cur.Before)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return nil, fmt.Errorf("%s after %d posts: %w", endpoint, len(posts), ErrMalformedPage)
		}

		posts = append(posts, page...)
		cur.Before = page[len(page)-1].PostedAtPrecise
		cur.Remaining = target - len(posts)

		if cur.Remaining <= 0 || len(page) != f.pageLimit {
			break
		}
		if cur.Remaining < f.pageLimit {
			size = cur.Remaining
		}
	}

	if len(posts) > target {
		posts = posts[:target]
	}
	return posts, nil
}
