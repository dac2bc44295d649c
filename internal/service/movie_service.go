package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"cinesphere/internal/catalog"
	"cinesphere/internal/details"
	"cinesphere/internal/metrics"
	"cinesphere/internal/models"
	"cinesphere/internal/providerlink"
	"cinesphere/internal/tmdb"
)

// MovieSource is the TMDB list API used for the feed.
type MovieSource interface {
	Trending(ctx context.Context) (*tmdb.PagedResponse, error)
	Search(ctx context.Context, query string) (*tmdb.PagedResponse, error)
}

// MovieService serves normalized movie lists and detail bundles.
type MovieService struct {
	source   MovieSource
	details  details.Fetcher
	norm     catalog.Normalizer
	redis    *redis.Client
	cacheTTL time.Duration
}

// NewMovieService creates a new MovieService. rdb may be nil, which disables caching.
func NewMovieService(source MovieSource, fetcher details.Fetcher, norm catalog.Normalizer, rdb *redis.Client, cacheTTL time.Duration) *MovieService {
	return &MovieService{
		source:   source,
		details:  fetcher,
		norm:     norm,
		redis:    rdb,
		cacheTTL: cacheTTL,
	}
}

// Trending returns today's trending movies.
func (s *MovieService) Trending(ctx context.Context) ([]models.Movie, error) {
	return s.cachedList(ctx, "movies:trending", func() (*tmdb.PagedResponse, error) {
		return s.source.Trending(ctx)
	})
}

// Search returns movies matching query. A blank query yields the trending list.
func (s *MovieService) Search(ctx context.Context, query string) ([]models.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.Trending(ctx)
	}
	key := "movies:search:" + strings.ToLower(query)
	return s.cachedList(ctx, key, func() (*tmdb.PagedResponse, error) {
		return s.source.Search(ctx, query)
	})
}

// Details assembles the detail bundle for movieID.
func (s *MovieService) Details(ctx context.Context, movieID int) (*models.MovieDetailBundle, error) {
	return s.details.FetchDetails(ctx, movieID)
}

// ProviderLink returns the external URL for watching title on provider.
func (s *MovieService) ProviderLink(provider, title, year string) string {
	return providerlink.Build(provider, title, year)
}

func (s *MovieService) cachedList(ctx context.Context, key string, fetch func() (*tmdb.PagedResponse, error)) ([]models.Movie, error) {
	if cached, err := s.getFromCache(ctx, key); err == nil {
		var movies []models.Movie
		if json.Unmarshal([]byte(cached), &movies) == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			slog.Debug("cache hit", "key", key)
			return movies, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	resp, err := fetch()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch movies: %w", err)
	}
	movies := s.norm.NormalizeAll(resp.Results)

	if data, err := json.Marshal(movies); err == nil {
		s.setCache(ctx, key, string(data))
	}
	return movies, nil
}

func (s *MovieService) getFromCache(ctx context.Context, key string) (string, error) {
	if s.redis == nil {
		return "", fmt.Errorf("redis not available")
	}
	return s.redis.Get(ctx, key).Result()
}

func (s *MovieService) setCache(ctx context.Context, key, value string) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.redis.Set(ctx, key, value, s.cacheTTL).Err(); err != nil {
		slog.Error("failed to set cache", "key", key, "error", err)
	}
}
