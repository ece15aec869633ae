package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// feedCall records one request made against mockFeed.
type feedCall struct {
	endpoint string
	limit    int
	before   string
}

// mockFeed serves a fixed, newest-first post list per endpoint.
type mockFeed struct {
	mu     sync.Mutex
	posts  map[string][]Post
	errAt  map[string]int // endpoint -> zero-based call index that fails
	calls  []feedCall
	maxReq int
}

func newMockFeed() *mockFeed {
	return &mockFeed{posts: make(map[string][]Post), errAt: make(map[string]int)}
}

// makePosts builds n posts with strictly decreasing timestamps.
func makePosts(n int, viewable bool) []Post {
	posts := make([]Post, n)
	for i := range posts {
		posts[i] = Post{
			ID:              int64(i + 1),
			PostedAtPrecise: fmt.Sprintf("%d.000000", 1_700_000_000-i),
			CanViewMedia:    viewable,
		}
	}
	return posts
}

func (m *mockFeed) Posts(ctx context.Context, endpoint string, limit int, before string) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c.endpoint == endpoint {
			n++
		}
	}
	m.calls = append(m.calls, feedCall{endpoint: endpoint, limit: limit, before: before})
	if at, ok := m.errAt[endpoint]; ok && at == n {
		return nil, &TransportError{Op: "GET", URL: endpoint, StatusCode: 500}
	}

	all := m.posts[endpoint]
	start := 0
	if before != "" {
		start = sort.Search(len(all), func(i int) bool { return all[i].PostedAtPrecise < before })
	}
	end := min(start+limit, len(all))
	if m.maxReq > 0 && end-start > m.maxReq {
		end = start + m.maxReq
	}
	return append([]Post(nil), all[start:end]...), nil
}

func (m *mockFeed) callsFor(endpoint string) []feedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []feedCall
	for _, c := range m.calls {
		if c.endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}

// mockFetcher returns a payload per URL; unknown URLs fail.
type mockFetcher struct {
	mu      sync.Mutex
	data    map[string][]byte
	fetched []string
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{data: make(map[string][]byte)}
}

func (f *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	d, ok := f.data[url]
	if !ok {
		return nil, &TransportError{Op: "GET", URL: url, StatusCode: 404}
	}
	return d, nil
}

func (f *mockFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

// memStore is an in-memory FileStore.
type memStore struct {
	mu       sync.Mutex
	files    map[string][]byte
	profiles []*Profile
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (s *memStore) MediaPath(archived bool, m Media, ext string) string {
	prefix := ""
	if archived {
		prefix = "archived/"
	}
	return fmt.Sprintf("%s%s/%d%s", prefix, m.Kind.Dir(), m.ID, ext)
}

func (s *memStore) Exists(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok, nil
}

func (s *memStore) Save(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.files[path] = data
	return nil
}

func (s *memStore) SaveProfile(p *Profile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.profiles) > 0 {
		return false, nil
	}
	s.profiles = append(s.profiles, p)
	return true, nil
}

// mockAPI implements API over a mockFeed and a fixed profile table.
type mockAPI struct {
	*mockFeed
	users  map[string]*Profile
	userID int64
}

func (a *mockAPI) User(ctx context.Context, handle string) (*Profile, error) {
	p, ok := a.users[handle]
	if !ok {
		return nil, fmt.Errorf("%s: %w", handle, ErrProfileNotFound)
	}
	return p, nil
}

func (a *mockAPI) AsUser(userID int64) API {
	cp := *a
	cp.userID = userID
	return &cp
}

// mockRepo implements RunRepository for testing.
type mockRepo struct {
	mu        sync.Mutex
	runs      map[string]*Run
	order     []string
	createErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{runs: make(map[string]*Run)}
}

func (m *mockRepo) Create(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *run
	m.runs[run.ID] = &cp
	m.order = append(m.order, run.ID)
	return nil
}

func (m *mockRepo) Finish(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return ErrRunNotFound
	}
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) Recent(ctx context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Run
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.runs[m.order[i]])
	}
	return out, nil
}

func (m *mockRepo) RecoverStale(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.runs {
		if r.Status == RunRunning {
			r.Status = RunInterrupted
			n++
		}
	}
	return n, nil
}

var errBoom = errors.New("boom")
