// Package details assembles the per-movie detail view from several TMDB endpoints.
package details

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"

	"cinesphere/internal/catalog"
	"cinesphere/internal/metrics"
	"cinesphere/internal/models"
	"cinesphere/internal/tmdb"
)

// ErrDetailsUnavailable is returned when every detail sub-fetch failed.
var ErrDetailsUnavailable = errors.New("failed to load movie details")

var errSubFetchPanicked = errors.New("sub-fetch panicked")

// Source is the subset of the TMDB client the aggregator needs.
type Source interface {
	Recommendations(ctx context.Context, movieID int) (*tmdb.PagedResponse, error)
	WatchProviders(ctx context.Context, movieID int) (*tmdb.WatchProvidersResponse, error)
	ReleaseDates(ctx context.Context, movieID int) (*tmdb.ReleaseDatesResponse, error)
	Videos(ctx context.Context, movieID int) (*tmdb.VideosResponse, error)
	MovieDetail(ctx context.Context, movieID int) (*tmdb.MovieDetail, error)
	Credits(ctx context.Context, movieID int) (*tmdb.CreditsResponse, error)
}

// Aggregator fetches and merges detail data for one movie.
type Aggregator struct {
	src  Source
	norm catalog.Normalizer
	now  func() time.Time
}

// NewAggregator creates an Aggregator.
func NewAggregator(src Source, norm catalog.Normalizer) *Aggregator {
	return &Aggregator{src: src, norm: norm, now: time.Now}
}

// FetchDetails runs the six sub-fetches concurrently and merges them once all have settled.
// A failed sub-fetch leaves its fields empty; only a failure of all six is an error.
func (a *Aggregator) FetchDetails(ctx context.Context, movieID int) (*models.MovieDetailBundle, error) {
	var (
		recs      *tmdb.PagedResponse
		providers *tmdb.WatchProvidersResponse
		releases  *tmdb.ReleaseDatesResponse
		videos    *tmdb.VideosResponse
		core      *tmdb.MovieDetail
		credits   *tmdb.CreditsResponse
	)

	parts := []string{"recommendations", "watch_providers", "release_dates", "videos", "details", "credits"}
	errs := make([]error, len(parts))
	var wg conc.WaitGroup
	run := func(i int, fn func() error) {
		wg.Go(func() {
			errs[i] = errSubFetchPanicked
			errs[i] = fn()
		})
	}

	start := time.Now()
	run(0, func() (err error) { recs, err = a.src.Recommendations(ctx, movieID); return })
	run(1, func() (err error) { providers, err = a.src.WatchProviders(ctx, movieID); return })
	run(2, func() (err error) { releases, err = a.src.ReleaseDates(ctx, movieID); return })
	run(3, func() (err error) { videos, err = a.src.Videos(ctx, movieID); return })
	run(4, func() (err error) { core, err = a.src.MovieDetail(ctx, movieID); return })
	run(5, func() (err error) { credits, err = a.src.Credits(ctx, movieID); return })
	if r := wg.WaitAndRecover(); r != nil {
		slog.Error("detail sub-fetch panicked", "movie_id", movieID, "panic", r.Value)
	}

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if errors.Is(err, context.Canceled) {
			continue
		}
		metrics.DetailSubFetchFailures.WithLabelValues(parts[i]).Inc()
		slog.Warn("detail sub-fetch failed", "movie_id", movieID, "part", parts[i], "error", err)
	}
	slog.Debug("detail aggregation finished", "movie_id", movieID, "failed", failed,
		"duration_ms", time.Since(start).Milliseconds())
	if failed == len(errs) {
		return nil, fmt.Errorf("%w: %w", ErrDetailsUnavailable, errors.Join(errs...))
	}

	bundle := models.EmptyBundle(movieID)
	bundle.SimilarMovies = SimilarMovies(a.norm, recs)
	bundle.WatchProviders = PickProviders(a.norm, providers)
	bundle.TheatricalStatus = ClassifyRelease(releases, a.now())
	if videos != nil {
		bundle.TrailerKey = SelectTrailer(videos.Results)
	}
	if core != nil {
		if core.Runtime != nil && *core.Runtime > 0 {
			runtime := *core.Runtime
			bundle.Runtime = &runtime
		}
		bundle.Tagline = core.Tagline
	}
	bundle.Credits = FilterCredits(credits)
	return bundle, nil
}
