package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"cinesphere/internal/catalog"
	"cinesphere/internal/models"
	"cinesphere/internal/repository"
	"cinesphere/internal/tmdb"
)

func newManager(t *testing.T, src *fakeSource, debounce time.Duration) (*SessionManager, *LibraryService) {
	t.Helper()
	store := repository.NewMemoryStore()
	lib := NewLibraryService(store)
	movies := NewMovieService(src, fakeFetcher{}, catalog.Normalizer{}, nil, 0)
	m := NewSessionManager(movies, lib, fakeFetcher{}, debounce)
	t.Cleanup(func() {
		m.Close()
		store.Close()
	})
	return m, lib
}

func feedIDs(s *Session) []int {
	var ids []int
	for _, m := range s.Snapshot().Feed {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestSessionOpensWithDefaultsAndTrending(t *testing.T) {
	src := newFakeSource()
	src.trending = []tmdb.Movie{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}}
	m, _ := newManager(t, src, 10*time.Millisecond)

	s, err := m.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	st := s.Snapshot()
	if st.Profile.Name != "Cinephile" || !reflect.DeepEqual(feedIDs(s), []int{1, 2}) {
		t.Fatalf("state = %+v", st)
	}

	again, _ := m.Get(context.Background(), "u1")
	if again != s {
		t.Fatal("second Get opened a new session")
	}
}

func TestSessionSearchIsDebounced(t *testing.T) {
	src := newFakeSource()
	src.results["dun"] = []tmdb.Movie{{ID: 10}}
	src.results["dune"] = []tmdb.Movie{{ID: 11}}
	m, _ := newManager(t, src, 30*time.Millisecond)
	s, _ := m.Get(context.Background(), "u1")

	s.Search("d")
	s.Search("du")
	s.Search("dun")
	s.Search("dune")

	eventually(t, func() bool { return s.Snapshot().Query == "dune" })
	if got := src.searched(); !reflect.DeepEqual(got, []string{"dune"}) {
		t.Fatalf("searched %v, want only the last query", got)
	}
	if !reflect.DeepEqual(feedIDs(s), []int{11}) || s.Snapshot().Searching {
		t.Fatalf("feed = %v", feedIDs(s))
	}
}

func TestSessionDropsSupersededSearchResult(t *testing.T) {
	src := newFakeSource()
	slow := make(chan struct{})
	src.gates["slow"] = slow
	src.results["slow"] = []tmdb.Movie{{ID: 1}}
	src.results["fast"] = []tmdb.Movie{{ID: 2}}
	m, _ := newManager(t, src, time.Millisecond)
	s, _ := m.Get(context.Background(), "u1")

	s.Search("slow")
	eventually(t, func() bool { return len(src.searched()) == 1 })
	s.Search("fast")
	eventually(t, func() bool { return s.Snapshot().Query == "fast" })

	close(slow)
	time.Sleep(20 * time.Millisecond)
	if st := s.Snapshot(); st.Query != "fast" || !reflect.DeepEqual(feedIDs(s), []int{2}) {
		t.Fatalf("stale search applied: query=%q feed=%v", st.Query, feedIDs(s))
	}
}

func TestSessionRecommendationsFollowWatchlist(t *testing.T) {
	src := newFakeSource()
	src.trending = []tmdb.Movie{
		{ID: 1, Title: "Drama", GenreIDs: []int{18}, VoteAverage: ptr(7.0)},
		{ID: 2, Title: "SciFi", GenreIDs: []int{878}, VoteAverage: ptr(6.0)},
	}
	m, lib := newManager(t, src, time.Millisecond)
	ctx := context.Background()
	s, _ := m.Get(ctx, "u1")

	_, _ = lib.UpdateProfile(ctx, "u1", models.ProfileUpdate{FavoriteGenres: []string{"Sci-Fi"}})
	eventually(t, func() bool {
		recs := s.Recommendations()
		return len(recs) == 2 && recs[0].ID == 2 && recs[0].Score == 11
	})

	_, _ = lib.ToggleWatchlist(ctx, "u1", models.ToggleWatchlistRequest{MovieID: 2, Title: "SciFi"})
	eventually(t, func() bool {
		recs := s.Recommendations()
		return len(recs) == 1 && recs[0].ID == 1
	})

	if got := s.Browse("Sci-Fi"); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("browse should ignore the watchlist, got %+v", got)
	}
}

func TestSessionSelectLoadsDetails(t *testing.T) {
	m, _ := newManager(t, newFakeSource(), time.Millisecond)
	s, _ := m.Get(context.Background(), "u1")

	st := s.Select(7)
	if st.MovieID != 7 {
		t.Fatalf("select state = %+v", st)
	}
	eventually(t, func() bool {
		sel := s.Selection()
		return !sel.Loading && sel.Bundle != nil && sel.Bundle.Tagline == "tagline"
	})
	eventually(t, func() bool { return s.Snapshot().Selection.Bundle.Tagline == "tagline" })
}

func TestSubscribeStreamsSnapshotsAndEndCloses(t *testing.T) {
	src := newFakeSource()
	src.results["x"] = []tmdb.Movie{{ID: 5}}
	m, _ := newManager(t, src, time.Millisecond)
	ctx := context.Background()

	sub, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	first := <-sub.C()
	if first.UserID != "u1" {
		t.Fatalf("first snapshot = %+v", first)
	}

	s, _ := m.Get(ctx, "u1")
	s.Search("x")
	deadline := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case st := <-sub.C():
			done = st.Query == "x"
		case <-deadline:
			t.Fatal("search result never streamed")
		}
	}

	if !m.End("u1") {
		t.Fatal("End reported no session")
	}
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not closed by End")
	}
	if m.End("u1") {
		t.Fatal("second End reported a session")
	}
	s.Close()
}

func ptr(v float64) *float64 { return &v }
