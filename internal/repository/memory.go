package repository

import (
	"context"
	"sort"
	"sync"

	"cinesphere/internal/models"
	"cinesphere/internal/stream"
)

// MemoryStore is an in-process Store for local development and tests.
// Writes publish snapshots synchronously, in write order.
type MemoryStore struct {
	snapshots

	// publishMu orders each write with the snapshot it publishes.
	publishMu sync.Mutex

	mu            sync.RWMutex
	profileData   map[string]models.UserProfile
	watchlistData map[string]map[int]models.WatchlistEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:     newSnapshots(),
		profileData:   make(map[string]models.UserProfile),
		watchlistData: make(map[string]map[int]models.WatchlistEntry),
	}
}

func (s *MemoryStore) GetProfile(_ context.Context, uid string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profileData[uid]
	if !ok {
		return nil, ErrNotFound
	}
	p.FavoriteGenres = append([]string{}, p.FavoriteGenres...)
	return &p, nil
}

func (s *MemoryStore) PutProfile(ctx context.Context, uid string, p models.UserProfile) error {
	p.FavoriteGenres = append([]string{}, p.FavoriteGenres...)
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	s.mu.Lock()
	s.profileData[uid] = p
	s.mu.Unlock()
	refresh(ctx, s.profiles, uid, profileLoader(s.GetProfile))
	return nil
}

func (s *MemoryStore) ListWatchlist(_ context.Context, uid string) ([]models.WatchlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]models.WatchlistEntry, 0, len(s.watchlistData[uid]))
	for _, e := range s.watchlistData[uid] {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].MovieID < entries[j].MovieID
	})
	return entries, nil
}

func (s *MemoryStore) PutWatchlistEntry(ctx context.Context, uid string, e models.WatchlistEntry) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	s.mu.Lock()
	if s.watchlistData[uid] == nil {
		s.watchlistData[uid] = make(map[int]models.WatchlistEntry)
	}
	s.watchlistData[uid][e.MovieID] = e
	s.mu.Unlock()
	refresh(ctx, s.watchlist, uid, s.ListWatchlist)
	return nil
}

func (s *MemoryStore) DeleteWatchlistEntry(ctx context.Context, uid string, movieID int) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	s.mu.Lock()
	delete(s.watchlistData[uid], movieID)
	s.mu.Unlock()
	refresh(ctx, s.watchlist, uid, s.ListWatchlist)
	return nil
}

func (s *MemoryStore) ToggleWatchlistEntry(ctx context.Context, uid string, e models.WatchlistEntry) (bool, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	s.mu.Lock()
	entries := s.watchlistData[uid]
	if entries == nil {
		entries = make(map[int]models.WatchlistEntry)
		s.watchlistData[uid] = entries
	}
	cur, ok := entries[e.MovieID]
	removed := ok && cur.Status == e.Status
	if removed {
		delete(entries, e.MovieID)
	} else {
		entries[e.MovieID] = e
	}
	s.mu.Unlock()
	refresh(ctx, s.watchlist, uid, s.ListWatchlist)
	return removed, nil
}

func (s *MemoryStore) WatchProfile(ctx context.Context, uid string) (*stream.Subscription[models.UserProfile], error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	return subscribe(ctx, s.profiles, uid, profileLoader(s.GetProfile))
}

func (s *MemoryStore) WatchWatchlist(ctx context.Context, uid string) (*stream.Subscription[[]models.WatchlistEntry], error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	return subscribe(ctx, s.watchlist, uid, s.ListWatchlist)
}

func (s *MemoryStore) Close() error {
	s.snapshots.close()
	return nil
}
