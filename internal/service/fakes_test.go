package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cinesphere/internal/models"
	"cinesphere/internal/repository"
	"cinesphere/internal/tmdb"
)

// fakeSource serves canned TMDB lists. A query mapped in gates blocks until that gate closes.
type fakeSource struct {
	mu       sync.Mutex
	trending []tmdb.Movie
	results  map[string][]tmdb.Movie
	gates    map[string]chan struct{}
	queries  []string
	err      error
}

func newFakeSource() *fakeSource {
	return &fakeSource{results: map[string][]tmdb.Movie{}, gates: map[string]chan struct{}{}}
}

func (f *fakeSource) Trending(context.Context) (*tmdb.PagedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &tmdb.PagedResponse{Results: f.trending}, nil
}

func (f *fakeSource) Search(ctx context.Context, query string) (*tmdb.PagedResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	gate := f.gates[query]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &tmdb.PagedResponse{Results: f.results[query]}, nil
}

func (f *fakeSource) searched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeFetcher struct{}

func (fakeFetcher) FetchDetails(_ context.Context, movieID int) (*models.MovieDetailBundle, error) {
	b := models.EmptyBundle(movieID)
	b.Tagline = "tagline"
	return b, nil
}

// failingStore rejects every write.
type failingStore struct {
	*repository.MemoryStore
}

var errDisk = errors.New("disk full")

func (f failingStore) PutProfile(_ context.Context, uid string, _ models.UserProfile) error {
	return &repository.StoreWriteError{Op: repository.OpPutProfile, UserID: uid, Err: errDisk}
}

func (f failingStore) PutWatchlistEntry(_ context.Context, uid string, _ models.WatchlistEntry) error {
	return &repository.StoreWriteError{Op: repository.OpPutWatchlist, UserID: uid, Err: errDisk}
}

func (f failingStore) ToggleWatchlistEntry(_ context.Context, uid string, _ models.WatchlistEntry) (bool, error) {
	return false, &repository.StoreWriteError{Op: repository.OpToggleWatched, UserID: uid, Err: errDisk}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
