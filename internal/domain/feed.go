package domain

import (
	"fmt"
	"time"
)

// MediaKind is the content kind of a media asset.
type MediaKind string

const (
	KindPhoto MediaKind = "photo"
	KindVideo MediaKind = "video"
	KindOther MediaKind = "other"
)

// ParseMediaKind maps the API type string to a MediaKind.
func ParseMediaKind(s string) MediaKind {
	switch MediaKind(s) {
	case KindPhoto, KindVideo:
		return MediaKind(s)
	default:
		return KindOther
	}
}

// Supported reports whether media of this kind is downloaded.
func (k MediaKind) Supported() bool {
	return k == KindPhoto || k == KindVideo
}

// Dir returns the directory name for the kind ("photos", "videos").
func (k MediaKind) Dir() string {
	return string(k) + "s"
}

// Media is a single downloadable asset attached to a post.
type Media struct {
	ID      int64
	Kind    MediaKind
	Source  string
	CanView bool
}

// Post is one item of a profile feed. Posts arrive newest first.
type Post struct {
	ID              int64
	PostedAtPrecise string
	CanViewMedia    bool
	Media           []Media
}

// Cursor tracks pagination state for one category fetch.
type Cursor struct {
	Remaining int
	Before    string
}

// Category is a feed category requested for download.
type Category struct {
	Name  string
	Limit int
}

// ArchivedCategory is the category whose files live under the archived subtree.
const ArchivedCategory = "archived"

// Archived reports whether the category downloads into the archived subtree.
func (c Category) Archived() bool {
	return c.Name == ArchivedCategory
}

// PostsEndpoint returns the feed endpoint for a user and category.
func PostsEndpoint(userID int64, category string) string {
	return fmt.Sprintf("/users/%d/posts/%s", userID, category)
}

// DownloadTask is one qualifying media asset bound to its destination.
type DownloadTask struct {
	Media    Media
	Path     string
	Archived bool
}

// CategoryResult is the settled outcome of fetching one category.
type CategoryResult struct {
	Category Category
	Posts    int
	Viewable []Post
	Err      error
}

// OK reports whether the category fetch succeeded.
func (r CategoryResult) OK() bool {
	return r.Err == nil
}

// DownloadStats are the counters of one coordinator run.
type DownloadStats struct {
	Category  string
	Attempted int
	Succeeded int
	Failed    int
}

// Summary is the outcome of an aggregated run.
type Summary struct {
	Results   []CategoryResult
	Downloads []DownloadStats
}

// ViewableCount sums viewable posts across successful categories.
func (s Summary) ViewableCount() int {
	n := 0
	for _, r := range s.Results {
		if r.OK() {
			n += len(r.Viewable)
		}
	}
	return n
}

// Profile holds the attributes of a user profile.
type Profile struct {
	ID       int64
	Name     string
	Username string
	About    string
	JoinDate string
	Website  string
	Wishlist string
	Location string
	LastSeen string
}

// RunStatus represents the state of a recorded sync run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// Run is a recorded sync of one profile.
type Run struct {
	ID         string
	Profile    string
	Status     RunStatus
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Categories []RunCategory
}

// RunCategory is the recorded outcome of one category within a run.
type RunCategory struct {
	Name      string
	Posts     int
	Viewable  int
	Attempted int
	Succeeded int
	Failed    int
	Error     string
}

// Finished reports whether the run reached a terminal state.
func (r *Run) Finished() bool {
	return r.Status != RunRunning
}

// DownloadsFor returns the download counters recorded for a category.
func (s Summary) DownloadsFor(category string) (DownloadStats, bool) {
	for _, d := range s.Downloads {
		if d.Category == category {
			return d, true
		}
	}
	return DownloadStats{}, false
}
