package domain

import "context"

// FeedSource is the driven port for reading a paginated feed.
// before is empty on the first request.
type FeedSource interface {
	Posts(ctx context.Context, endpoint string, limit int, before string) ([]Post, error)
}

// ProfileSource is the driven port for resolving profiles.
type ProfileSource interface {
	User(ctx context.Context, handle string) (*Profile, error)
}

// API is the authenticated remote API. AsUser returns a copy that
// identifies itself as the given user; the receiver is left untouched.
type API interface {
	FeedSource
	ProfileSource
	AsUser(userID int64) API
}

// ByteFetcher is the driven port for downloading a binary resource.
type ByteFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FileStore is the driven port for local media storage.
type FileStore interface {
	MediaPath(archived bool, m Media, ext string) string
	Exists(path string) (bool, error)
	Save(path string, data []byte) error
	SaveProfile(p *Profile) (bool, error)
}

// RunRepository is the driven port for run history persistence.
type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	Finish(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	Recent(ctx context.Context, limit int) ([]Run, error)
	RecoverStale(ctx context.Context) (int64, error)
}
