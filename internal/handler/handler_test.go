package handler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"

	"cinesphere/internal/catalog"
	"cinesphere/internal/details"
	"cinesphere/internal/models"
	"cinesphere/internal/repository"
	"cinesphere/internal/service"
	"cinesphere/internal/tmdb"
)

type stubSource struct {
	trending []tmdb.Movie
	err      error
}

func (s stubSource) Trending(context.Context) (*tmdb.PagedResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &tmdb.PagedResponse{Results: s.trending}, nil
}

func (s stubSource) Search(ctx context.Context, _ string) (*tmdb.PagedResponse, error) {
	return s.Trending(ctx)
}

// stubFetcher fails for movie 404 and succeeds otherwise.
type stubFetcher struct{}

func (stubFetcher) FetchDetails(_ context.Context, id int) (*models.MovieDetailBundle, error) {
	if id == 404 {
		return nil, fmt.Errorf("%w: all sub-fetches failed", details.ErrDetailsUnavailable)
	}
	b := models.EmptyBundle(id)
	b.TrailerKey = "yt"
	return b, nil
}

type brokenWatchlistStore struct {
	*repository.MemoryStore
}

func (b brokenWatchlistStore) PutWatchlistEntry(_ context.Context, uid string, _ models.WatchlistEntry) error {
	return &repository.StoreWriteError{Op: repository.OpPutWatchlist, UserID: uid, Err: errors.New("timeout")}
}

func (b brokenWatchlistStore) ToggleWatchlistEntry(_ context.Context, uid string, _ models.WatchlistEntry) (bool, error) {
	return false, &repository.StoreWriteError{Op: repository.OpToggleWatched, UserID: uid, Err: errors.New("timeout")}
}

func newTestApp(t *testing.T, src stubSource, store repository.Store) *fiber.App {
	t.Helper()
	movies := service.NewMovieService(src, stubFetcher{}, catalog.Normalizer{}, nil, 0)
	library := service.NewLibraryService(store)
	sessions := service.NewSessionManager(movies, library, stubFetcher{}, time.Millisecond)
	t.Cleanup(sessions.Close)

	app := fiber.New(fiber.Config{
		ErrorHandler:    ErrorHandler,
		StructValidator: NewStructValidator(),
		JSONEncoder:     json.Marshal,
		JSONDecoder:     json.Unmarshal,
	})
	RegisterRoutes(app, NewMovieHandler(movies), NewMeHandler(sessions, library))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, user, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestPublicEndpoints(t *testing.T) {
	src := stubSource{trending: []tmdb.Movie{{ID: 1, Title: "Dune"}}}
	app := newTestApp(t, src, repository.NewMemoryStore())

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"health", "/api/v1/health", http.StatusOK, `"status":"ok"`},
		{"genres", "/api/v1/genres", http.StatusOK, `"Sci-Fi"`},
		{"trending", "/api/v1/movies/trending", http.StatusOK, `"title":"Dune"`},
		{"search", "/api/v1/movies/search?q=dune", http.StatusOK, `"id":1`},
		{"details", "/api/v1/movies/7/details", http.StatusOK, `"trailerKey":"yt"`},
		{"details bad id", "/api/v1/movies/abc/details", http.StatusBadRequest, "invalid movie id"},
		{"details unavailable", "/api/v1/movies/404/details", http.StatusBadGateway, `"failed to load movie details"`},
		{"provider link", "/api/v1/providers/link?provider=Netflix&title=Dune", http.StatusOK, "netflix.com/search?q=Dune"},
		{"provider link no title", "/api/v1/providers/link?provider=Netflix", http.StatusBadRequest, "title is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, "GET", tt.path, "", "")
			if status != tt.wantStatus || !strings.Contains(body, tt.wantBody) {
				t.Fatalf("status=%d body=%s; want %d containing %q", status, body, tt.wantStatus, tt.wantBody)
			}
		})
	}
}

func TestTrendingUpstreamFailure(t *testing.T) {
	app := newTestApp(t, stubSource{err: errors.New("tmdb down")}, repository.NewMemoryStore())
	status, body := do(t, app, "GET", "/api/v1/movies/trending", "", "")
	if status != http.StatusBadGateway || !strings.Contains(body, "failed to retrieve movies") {
		t.Fatalf("status=%d body=%s", status, body)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	app := newTestApp(t, stubSource{}, repository.NewMemoryStore())
	if status, _ := do(t, app, "GET", "/api/v1/me/profile", "", ""); status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
}

func TestProfileLifecycle(t *testing.T) {
	app := newTestApp(t, stubSource{}, repository.NewMemoryStore())

	status, body := do(t, app, "GET", "/api/v1/me/profile", "u1", "")
	if status != http.StatusOK || !strings.Contains(body, `"name":"Cinephile"`) {
		t.Fatalf("default profile: status=%d body=%s", status, body)
	}

	status, body = do(t, app, "PUT", "/api/v1/me/profile", "u1", `{"ageSafe":true}`)
	if status != http.StatusOK {
		t.Fatalf("update: status=%d body=%s", status, body)
	}
	var p models.UserProfile
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatal(err)
	}
	if !p.AgeSafe || p.Name != "Cinephile" || len(p.FavoriteGenres) != 2 {
		t.Fatalf("merged profile = %+v", p)
	}

	long := strings.Repeat("x", 101)
	status, _ = do(t, app, "PUT", "/api/v1/me/profile", "u1", `{"name":"`+long+`"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("over-long name: status = %d, want 400", status)
	}
	status, _ = do(t, app, "PUT", "/api/v1/me/profile", "u1", `{not json`)
	if status != http.StatusBadRequest {
		t.Fatalf("bad json: status = %d, want 400", status)
	}
}

func TestWatchlistToggle(t *testing.T) {
	app := newTestApp(t, stubSource{}, repository.NewMemoryStore())
	body := `{"movieId":42,"title":"Heat","status":"Watched"}`

	status, resp := do(t, app, "POST", "/api/v1/me/watchlist", "u1", body)
	if status != http.StatusOK || !strings.Contains(resp, `"status":"Watched"`) {
		t.Fatalf("add: status=%d body=%s", status, resp)
	}
	if status, resp = do(t, app, "GET", "/api/v1/me/watchlist", "u1", ""); !strings.Contains(resp, `"movieId":42`) {
		t.Fatalf("list: status=%d body=%s", status, resp)
	}
	if status, _ = do(t, app, "POST", "/api/v1/me/watchlist", "u1", body); status != http.StatusNoContent {
		t.Fatalf("toggle off: status = %d, want 204", status)
	}
	if status, resp = do(t, app, "GET", "/api/v1/me/watchlist", "u1", ""); resp != "[]" {
		t.Fatalf("after toggle off: status=%d body=%s", status, resp)
	}

	status, _ = do(t, app, "POST", "/api/v1/me/watchlist", "u1", `{"movieId":1,"title":"x","status":"Dropped"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("invalid status: got %d, want 400", status)
	}
	if status, _ = do(t, app, "DELETE", "/api/v1/me/watchlist/0", "u1", ""); status != http.StatusBadRequest {
		t.Fatalf("delete id 0: got %d", status)
	}
}

func TestWatchlistWriteFailureIsReported(t *testing.T) {
	app := newTestApp(t, stubSource{}, brokenWatchlistStore{repository.NewMemoryStore()})
	status, body := do(t, app, "POST", "/api/v1/me/watchlist", "u1", `{"movieId":1,"title":"x"}`)
	if status != http.StatusBadGateway || !strings.Contains(body, "failed to save changes") {
		t.Fatalf("status=%d body=%s", status, body)
	}
}

func TestBrowseAndRecommendations(t *testing.T) {
	src := stubSource{trending: []tmdb.Movie{
		{ID: 1, Title: "Heat", GenreIDs: []int{80}},
		{ID: 2, Title: "Alien", GenreIDs: []int{878}, Adult: true},
	}}
	app := newTestApp(t, src, repository.NewMemoryStore())

	status, body := do(t, app, "GET", "/api/v1/me/browse?genre=Crime", "u1", "")
	if status != http.StatusOK || !strings.Contains(body, `"id":1`) || strings.Contains(body, `"id":2`) {
		t.Fatalf("browse: status=%d body=%s", status, body)
	}

	status, body = do(t, app, "GET", "/api/v1/me/recommendations", "u1", "")
	var ranked []models.RankedMovie
	if err := json.Unmarshal([]byte(body), &ranked); err != nil || status != http.StatusOK {
		t.Fatalf("recommendations: status=%d body=%s", status, body)
	}
	if len(ranked) != 2 || ranked[0].ID != 2 || ranked[0].Score != 5 {
		t.Fatalf("ranked = %+v", ranked)
	}
}

func TestSelection(t *testing.T) {
	app := newTestApp(t, stubSource{}, repository.NewMemoryStore())

	status, body := do(t, app, "PUT", "/api/v1/me/selection", "u1", `{"movieId":9}`)
	if status != http.StatusAccepted || !strings.Contains(body, `"movieId":9`) {
		t.Fatalf("select: status=%d body=%s", status, body)
	}
	if status, _ := do(t, app, "PUT", "/api/v1/me/selection", "u1", `{"movieId":0}`); status != http.StatusBadRequest {
		t.Fatalf("select 0: status = %d", status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body = do(t, app, "GET", "/api/v1/me/selection", "u1", "")
		if strings.Contains(body, `"trailerKey":"yt"`) && strings.Contains(body, `"loading":false`) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("selection never loaded: %s", body)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEndSession(t *testing.T) {
	app := newTestApp(t, stubSource{}, repository.NewMemoryStore())
	_, _ = do(t, app, "GET", "/api/v1/me/feed", "u1", "")
	if status, _ := do(t, app, "DELETE", "/api/v1/me/session", "u1", ""); status != http.StatusNoContent {
		t.Fatalf("status = %d", status)
	}
}

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := writeEvent(w, "state", map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "event: state\ndata: {\"n\":1}\n\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
