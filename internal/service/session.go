package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cinesphere/internal/details"
	"cinesphere/internal/models"
	"cinesphere/internal/recommend"
	"cinesphere/internal/stream"
)

// SessionState is the full client-visible state of a viewer session.
type SessionState struct {
	UserID    string                  `json:"userId"`
	Profile   models.UserProfile      `json:"profile"`
	Watchlist []models.WatchlistEntry `json:"watchlist"`
	Feed      []models.Movie          `json:"feed"`
	Query     string                  `json:"query"`
	Searching bool                    `json:"searching"`
	FeedError string                  `json:"feedError,omitempty"`
	Selection details.State           `json:"selection"`
}

// Session is one signed-in viewer: their live profile and watchlist, the movie feed,
// and the detail selection. State changes are published to the session hub.
type Session struct {
	uid      string
	movies   *MovieService
	library  *LibraryService
	hub      *stream.Hub[SessionState]
	debounce time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	selection *details.Selection
	wg        sync.WaitGroup

	mu        sync.RWMutex
	profile   models.UserProfile
	watchlist []models.WatchlistEntry
	feed      []models.Movie
	query     string
	feedErr   string
	searchGen uint64
	pending   *time.Timer
	selState  details.State
	closed    bool
}

func newSession(uid string, movies *MovieService, library *LibraryService, fetcher details.Fetcher,
	hub *stream.Hub[SessionState], debounce time.Duration) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		uid:       uid,
		movies:    movies,
		library:   library,
		hub:       hub,
		debounce:  debounce,
		ctx:       ctx,
		cancel:    cancel,
		profile:   models.DefaultProfile(""),
		watchlist: []models.WatchlistEntry{},
		feed:      []models.Movie{},
	}
	s.selection = details.NewSelection(ctx, fetcher, s.onSelection)
	return s
}

// open creates the profile if needed, subscribes to profile and watchlist changes and loads the feed.
func (s *Session) open(ctx context.Context) error {
	profile, err := s.library.EnsureProfile(ctx, s.uid, "")
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.profile = *profile
	s.mu.Unlock()

	profileSub, err := s.library.store.WatchProfile(ctx, s.uid)
	if err != nil {
		return err
	}
	watchlistSub, err := s.library.store.WatchWatchlist(ctx, s.uid)
	if err != nil {
		profileSub.Cancel()
		return err
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		consume(s.ctx, profileSub, func(p models.UserProfile) {
			s.mu.Lock()
			s.profile = p
			s.mu.Unlock()
		}, s.publish)
	}()
	go func() {
		defer s.wg.Done()
		consume(s.ctx, watchlistSub, func(w []models.WatchlistEntry) {
			s.mu.Lock()
			s.watchlist = w
			s.mu.Unlock()
		}, s.publish)
	}()

	movies, err := s.movies.Trending(ctx)
	s.mu.Lock()
	if err != nil {
		slog.Error("failed to load trending feed", "user_id", s.uid, "error", err)
		s.feedErr = "failed to load movies"
	} else {
		s.feed = movies
	}
	s.mu.Unlock()
	s.publish()
	return nil
}

// consume applies every snapshot from sub as a full replacement until ctx ends.
func consume[T any](ctx context.Context, sub *stream.Subscription[T], apply func(T), changed func()) {
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub.C():
			if !ok {
				return
			}
			apply(v)
			changed()
		}
	}
}

// Search schedules a feed search after the debounce delay. A later call supersedes
// any search that has not applied yet. It returns the search generation.
func (s *Session) Search(query string) uint64 {
	s.mu.Lock()
	s.searchGen++
	gen := s.searchGen
	if s.pending != nil {
		s.pending.Stop()
	}
	if s.closed {
		s.mu.Unlock()
		return gen
	}
	s.pending = time.AfterFunc(s.debounce, func() { s.runSearch(gen, query) })
	s.mu.Unlock()

	s.publish()
	return gen
}

func (s *Session) runSearch(gen uint64, query string) {
	if !s.currentSearch(gen) {
		return
	}

	movies, err := s.movies.Search(s.ctx, query)

	s.mu.Lock()
	if gen != s.searchGen || s.closed {
		s.mu.Unlock()
		slog.Debug("discarding superseded search", "user_id", s.uid, "query", query)
		return
	}
	s.pending = nil
	s.query = query
	if err != nil {
		slog.Error("search failed", "user_id", s.uid, "query", query, "error", err)
		s.feedErr = "failed to load movies"
	} else {
		s.feed = movies
		s.feedErr = ""
	}
	s.mu.Unlock()
	s.publish()
}

func (s *Session) currentSearch(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gen == s.searchGen && !s.closed
}

// Recommendations ranks the current feed for this viewer.
func (s *Session) Recommendations() []models.RankedMovie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return recommend.Rank(s.feed, s.profile, s.watchlist)
}

// Browse filters the current feed by genre ("" keeps every genre).
func (s *Session) Browse(genre string) []models.Movie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return recommend.FilterForBrowse(s.feed, s.profile, genre)
}

// Select opens movieID in the detail view.
func (s *Session) Select(movieID int) details.State {
	s.selection.Select(movieID)
	return s.selection.Snapshot()
}

// Selection returns the current detail view.
func (s *Session) Selection() details.State {
	return s.selection.Snapshot()
}

func (s *Session) onSelection(st details.State) {
	s.mu.Lock()
	s.selState = st
	s.mu.Unlock()
	s.publish()
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionState{
		UserID:    s.uid,
		Profile:   s.profile,
		Watchlist: s.watchlist,
		Feed:      s.feed,
		Query:     s.query,
		Searching: s.pending != nil,
		FeedError: s.feedErr,
		Selection: s.selState,
	}
}

func (s *Session) publish() {
	if s.hub != nil {
		s.hub.Publish(s.uid, s.Snapshot())
	}
}

// Close cancels subscriptions, the pending search and any in-flight detail fetch.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.selection.Close()
	s.wg.Wait()
}
