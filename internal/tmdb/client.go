package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"cinesphere/internal/config"
	"cinesphere/internal/metrics"
)

const breakerName = "tmdb-api"

// errCallerDone marks requests abandoned by the caller's context; the breaker ignores them.
var errCallerDone = errors.New("request abandoned by caller")

// StatusError is returned when TMDB answers with a non-200 status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("TMDB %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client is the TMDB API client.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a new TMDB API client.
func NewClient(cfg config.TMDBConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 40
	}

	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// 4xx responses other than 429 do not trip the breaker.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
			}
			return err == nil
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ---- Client Methods ----

// Trending fetches today's trending movies.
func (c *Client) Trending(ctx context.Context) (*PagedResponse, error) {
	var result PagedResponse
	if err := c.getJSON(ctx, "trending", "/trending/movie/day", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search runs a movie title search.
func (c *Client) Search(ctx context.Context, query string) (*PagedResponse, error) {
	var result PagedResponse
	q := url.Values{"query": {query}}
	if err := c.getJSON(ctx, "search", "/search/movie", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Recommendations fetches TMDB's recommendations for a movie.
func (c *Client) Recommendations(ctx context.Context, movieID int) (*PagedResponse, error) {
	var result PagedResponse
	if err := c.getJSON(ctx, "recommendations", moviePath(movieID, "/recommendations"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WatchProviders fetches the region-keyed watch providers of a movie.
func (c *Client) WatchProviders(ctx context.Context, movieID int) (*WatchProvidersResponse, error) {
	var result WatchProvidersResponse
	if err := c.getJSON(ctx, "watch_providers", moviePath(movieID, "/watch/providers"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReleaseDates fetches per-country release dates of a movie.
func (c *Client) ReleaseDates(ctx context.Context, movieID int) (*ReleaseDatesResponse, error) {
	var result ReleaseDatesResponse
	if err := c.getJSON(ctx, "release_dates", moviePath(movieID, "/release_dates"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Videos fetches trailers and clips of a movie.
func (c *Client) Videos(ctx context.Context, movieID int) (*VideosResponse, error) {
	var result VideosResponse
	if err := c.getJSON(ctx, "videos", moviePath(movieID, "/videos"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MovieDetail fetches core movie details.
func (c *Client) MovieDetail(ctx context.Context, movieID int) (*MovieDetail, error) {
	var result MovieDetail
	if err := c.getJSON(ctx, "details", moviePath(movieID, ""), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Credits fetches cast and crew of a movie.
func (c *Client) Credits(ctx context.Context, movieID int) (*CreditsResponse, error) {
	var result CreditsResponse
	if err := c.getJSON(ctx, "credits", moviePath(movieID, "/credits"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func moviePath(movieID int, suffix string) string {
	return "/movie/" + strconv.Itoa(movieID) + suffix
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	body, err := c.get(ctx, endpoint, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("TMDB rate limiter: %w", err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	target := c.baseURL + path + "?" + query.Encode()

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doGet(ctx, endpoint, target)
	})
	metrics.TMDBRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.TMDBRequests.WithLabelValues(endpoint, "rejected").Inc()
		return nil, fmt.Errorf("TMDB %s: %w", endpoint, err)
	case errors.Is(err, errCallerDone):
		metrics.TMDBRequests.WithLabelValues(endpoint, "cancelled").Inc()
		return nil, err
	case err != nil:
		metrics.TMDBRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	metrics.TMDBRequests.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

func (c *Client) doGet(ctx context.Context, endpoint, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("fetching TMDB", "endpoint", endpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("TMDB %s: %w: %w", endpoint, errCallerDone, ctx.Err())
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("TMDB %s: %w: %w", endpoint, errCallerDone, ctx.Err())
		}
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
