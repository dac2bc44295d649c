package details

import (
	"context"
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"cinesphere/internal/catalog"
	"cinesphere/internal/metrics"
	"cinesphere/internal/tmdb"
)

var errUpstream = errors.New("upstream unavailable")

// fakeSource returns canned responses; any nil response is reported as a failure.
type fakeSource struct {
	recs      *tmdb.PagedResponse
	providers *tmdb.WatchProvidersResponse
	releases  *tmdb.ReleaseDatesResponse
	videos    *tmdb.VideosResponse
	detail    *tmdb.MovieDetail
	credits   *tmdb.CreditsResponse

	panicOnVideos bool
	videosErr     error
}

func orFail[T any](v *T) (*T, error) {
	if v == nil {
		return nil, errUpstream
	}
	return v, nil
}

func (f *fakeSource) Recommendations(context.Context, int) (*tmdb.PagedResponse, error) {
	return orFail(f.recs)
}

func (f *fakeSource) WatchProviders(context.Context, int) (*tmdb.WatchProvidersResponse, error) {
	return orFail(f.providers)
}

func (f *fakeSource) ReleaseDates(context.Context, int) (*tmdb.ReleaseDatesResponse, error) {
	return orFail(f.releases)
}

func (f *fakeSource) Videos(context.Context, int) (*tmdb.VideosResponse, error) {
	if f.panicOnVideos {
		panic("boom")
	}
	if f.videosErr != nil {
		return nil, f.videosErr
	}
	return orFail(f.videos)
}

func (f *fakeSource) MovieDetail(context.Context, int) (*tmdb.MovieDetail, error) {
	return orFail(f.detail)
}

func (f *fakeSource) Credits(context.Context, int) (*tmdb.CreditsResponse, error) {
	return orFail(f.credits)
}

func intPtr(v int) *int { return &v }

func TestFetchDetailsMergesAllParts(t *testing.T) {
	src := &fakeSource{
		recs: &tmdb.PagedResponse{Results: []tmdb.Movie{{ID: 7, Title: "Arrival"}}},
		providers: &tmdb.WatchProvidersResponse{Results: map[string]tmdb.RegionProviders{
			"IN": {Flatrate: []tmdb.Provider{{ProviderID: 8, ProviderName: "Netflix"}}},
		}},
		releases: &tmdb.ReleaseDatesResponse{Results: []tmdb.CountryReleases{{
			Country:      "IN",
			ReleaseDates: []tmdb.ReleaseDate{{ReleaseDate: "2024-03-01T00:00:00.000Z", Type: 3}},
		}}},
		videos:  &tmdb.VideosResponse{Results: []tmdb.Video{{Type: "Trailer", Site: "YouTube", Key: "yt"}}},
		detail:  &tmdb.MovieDetail{ID: 1, Runtime: intPtr(166), Tagline: "Long live the fighters."},
		credits: &tmdb.CreditsResponse{Crew: []tmdb.CrewMember{{ID: 2, Name: "Denis", Job: "Director"}}},
	}
	agg := NewAggregator(src, catalog.Normalizer{})
	agg.now = func() time.Time { return time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC) }

	b, err := agg.FetchDetails(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}
	if b.MovieID != 1 || len(b.SimilarMovies) != 1 || b.SimilarMovies[0].ID != 7 {
		t.Errorf("similar = %+v", b.SimilarMovies)
	}
	if b.WatchProviders == nil || b.WatchProviders.Region != "IN" {
		t.Errorf("providers = %+v", b.WatchProviders)
	}
	if b.TheatricalStatus == nil || b.TheatricalStatus.Status != "In Theaters" {
		t.Errorf("theatrical = %+v", b.TheatricalStatus)
	}
	if b.TrailerKey != "yt" {
		t.Errorf("trailer = %q", b.TrailerKey)
	}
	if b.Runtime == nil || *b.Runtime != 166 || b.Tagline != "Long live the fighters." {
		t.Errorf("runtime/tagline = %v/%q", b.Runtime, b.Tagline)
	}
	if len(b.Credits) != 1 || b.Credits[0].Name != "Denis" {
		t.Errorf("credits = %+v", b.Credits)
	}
}

func TestFetchDetailsDegradesFailedParts(t *testing.T) {
	src := &fakeSource{
		videos: &tmdb.VideosResponse{Results: []tmdb.Video{{Type: "Trailer", Site: "YouTube", Key: "yt"}}},
	}
	b, err := NewAggregator(src, catalog.Normalizer{}).FetchDetails(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}
	if b.TrailerKey != "yt" {
		t.Fatalf("trailer = %q", b.TrailerKey)
	}
	if b.WatchProviders != nil || b.TheatricalStatus != nil || b.Runtime != nil || b.Tagline != "" {
		t.Fatalf("failed parts not left absent: %+v", b)
	}
	if b.SimilarMovies == nil || b.Credits == nil {
		t.Fatal("list fields must be empty, not nil")
	}
}

func TestFetchDetailsZeroRuntimeIsAbsent(t *testing.T) {
	src := &fakeSource{detail: &tmdb.MovieDetail{Runtime: intPtr(0)}}
	b, err := NewAggregator(src, catalog.Normalizer{}).FetchDetails(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}
	if b.Runtime != nil {
		t.Fatalf("runtime = %d, want absent", *b.Runtime)
	}
}

func TestFetchDetailsAllFailed(t *testing.T) {
	_, err := NewAggregator(&fakeSource{}, catalog.Normalizer{}).FetchDetails(context.Background(), 5)
	if !errors.Is(err, ErrDetailsUnavailable) {
		t.Fatalf("err = %v, want ErrDetailsUnavailable", err)
	}
	if !errors.Is(err, errUpstream) {
		t.Fatalf("err = %v should wrap the sub-fetch errors", err)
	}
}

func TestFetchDetailsSurvivesPanickingPart(t *testing.T) {
	src := &fakeSource{
		panicOnVideos: true,
		detail:        &tmdb.MovieDetail{Tagline: "still here"},
	}
	b, err := NewAggregator(src, catalog.Normalizer{}).FetchDetails(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}
	if b.Tagline != "still here" || b.TrailerKey != "" {
		t.Fatalf("bundle = %+v", b)
	}
}

func subFetchFailures(t *testing.T, part string) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.DetailSubFetchFailures.WithLabelValues(part).Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestFetchDetailsCancelledPartIsNotCountedAsFailure(t *testing.T) {
	src := &fakeSource{
		videosErr: context.Canceled,
		detail:    &tmdb.MovieDetail{Tagline: "kept"},
	}
	videosBefore := subFetchFailures(t, "videos")
	creditsBefore := subFetchFailures(t, "credits")

	b, err := NewAggregator(src, catalog.Normalizer{}).FetchDetails(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}
	if b.TrailerKey != "" || b.Tagline != "kept" {
		t.Fatalf("bundle = %+v", b)
	}
	if got := subFetchFailures(t, "videos"); got != videosBefore {
		t.Fatalf("cancelled videos fetch counted: %v -> %v", videosBefore, got)
	}
	if got := subFetchFailures(t, "credits"); got != creditsBefore+1 {
		t.Fatalf("failed credits fetch not counted: %v -> %v", creditsBefore, got)
	}
}
