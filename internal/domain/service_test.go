package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestSync(t *testing.T, api *mockAPI, fetcher *mockFetcher, store *memStore, repo *mockRepo) *SyncService {
	return NewSyncService(api, fetcher, func(string) FileStore { return store }, repo,
		SyncOptions{PageLimit: 10, Workers: 2}, zaptest.NewLogger(t))
}

func newTestAPI() *mockAPI {
	return &mockAPI{
		mockFeed: newMockFeed(),
		users: map[string]*Profile{
			"me":      {ID: 1, Name: "Me"},
			"creator": {ID: 42, Name: "Creator", Username: "creator"},
		},
	}
}

func TestSyncService_Sync(t *testing.T) {
	api, fetcher, store, repo := newTestAPI(), newMockFetcher(), newMemStore(), newMockRepo()
	seedCategory(api.mockFeed, fetcher, 42, "videos", 6, 4)

	run, err := newTestSync(t, api, fetcher, store, repo).Sync(context.Background(), "creator", []Category{{Name: "videos", Limit: 100}})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunCompleted, run.Status)
	assert.True(t, run.Finished())
	require.Len(t, run.Categories, 1)
	assert.Equal(t, RunCategory{Name: "videos", Posts: 6, Viewable: 4, Attempted: 4, Succeeded: 4}, run.Categories[0])

	require.Len(t, store.profiles, 1)
	assert.Equal(t, "creator", store.profiles[0].Username)

	stored, err := repo.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, stored.Status)
}

func TestSyncService_Sync_ProfileNotFound(t *testing.T) {
	api, fetcher, store, repo := newTestAPI(), newMockFetcher(), newMemStore(), newMockRepo()

	run, err := newTestSync(t, api, fetcher, store, repo).Sync(context.Background(), "nobody", []Category{{Name: "videos", Limit: 10}})
	require.ErrorIs(t, err, ErrProfileNotFound)
	assert.Equal(t, RunFailed, run.Status)
	assert.Contains(t, run.Error, "nobody")

	stored, _ := repo.Get(context.Background(), run.ID)
	assert.Equal(t, RunFailed, stored.Status)
	assert.Empty(t, store.profiles)
}

func TestSyncService_Sync_NoViewable(t *testing.T) {
	api, fetcher, store, repo := newTestAPI(), newMockFetcher(), newMemStore(), newMockRepo()
	seedCategory(api.mockFeed, fetcher, 42, "videos", 3, 0)

	run, err := newTestSync(t, api, fetcher, store, repo).Sync(context.Background(), "creator", []Category{{Name: "videos", Limit: 10}})
	require.ErrorIs(t, err, ErrNoViewableContent)
	assert.Equal(t, RunFailed, run.Status)
	require.Len(t, run.Categories, 1)
	assert.Equal(t, 3, run.Categories[0].Posts)
	assert.Empty(t, store.files)
}

func TestSyncService_Sync_NoCategories(t *testing.T) {
	repo := newMockRepo()
	_, err := newTestSync(t, newTestAPI(), newMockFetcher(), newMemStore(), repo).Sync(context.Background(), "creator", nil)
	require.ErrorIs(t, err, ErrNoCategories)
	assert.Empty(t, repo.runs, "nothing is recorded without categories")
}

func TestSyncService_Sync_RecordFailure(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = errBoom

	_, err := newTestSync(t, newTestAPI(), newMockFetcher(), newMemStore(), repo).Sync(context.Background(), "creator", []Category{{Name: "videos", Limit: 1}})
	assert.ErrorIs(t, err, errBoom)
}

func TestSyncService_Recent(t *testing.T) {
	api, fetcher, store, repo := newTestAPI(), newMockFetcher(), newMemStore(), newMockRepo()
	seedCategory(api.mockFeed, fetcher, 42, "videos", 1, 1)
	svc := newTestSync(t, api, fetcher, store, repo)
	ctx := context.Background()

	first, err := svc.Sync(ctx, "creator", []Category{{Name: "videos", Limit: 1}})
	require.NoError(t, err)
	second, err := svc.Sync(ctx, "creator", []Category{{Name: "videos", Limit: 1}})
	require.NoError(t, err)

	// Second run finds the file on disk.
	assert.Equal(t, 0, second.Categories[0].Attempted)

	runs, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}

func TestSyncService_RecoverStale(t *testing.T) {
	repo := newMockRepo()
	repo.runs["stale"] = &Run{ID: "stale", Status: RunRunning}
	repo.runs["done"] = &Run{ID: "done", Status: RunCompleted}

	svc := newTestSync(t, newTestAPI(), newMockFetcher(), newMemStore(), repo)
	n, err := svc.RecoverStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	run, err := svc.Get(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, RunInterrupted, run.Status)
}
