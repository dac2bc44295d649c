package details

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"cinesphere/internal/metrics"
	"cinesphere/internal/models"
)

// Fetcher loads the detail bundle for a movie. *Aggregator satisfies it.
type Fetcher interface {
	FetchDetails(ctx context.Context, movieID int) (*models.MovieDetailBundle, error)
}

// State is the externally visible detail view of a Selection.
type State struct {
	Generation uint64                    `json:"generation"`
	MovieID    int                       `json:"movieId"`
	Loading    bool                      `json:"loading"`
	Bundle     *models.MovieDetailBundle `json:"bundle,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// Selection tracks the currently selected movie and its details.
// Only the latest Select may publish; results of superseded selections are dropped.
type Selection struct {
	fetcher Fetcher
	parent  context.Context
	onApply func(State)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

// NewSelection creates a Selection whose fetches run under parent.
// onApply, when non-nil, is called with every state change while the lock is held,
// so it must not block or call back into the Selection.
func NewSelection(parent context.Context, fetcher Fetcher, onApply func(State)) *Selection {
	return &Selection{fetcher: fetcher, parent: parent, onApply: onApply}
}

// Select resets the detail view for movieID and starts loading it in the background.
// The returned channel is closed once that fetch has settled.
func (s *Selection) Select(movieID int) (uint64, <-chan struct{}) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	s.state = State{
		Generation: s.state.Generation + 1,
		MovieID:    movieID,
		Loading:    true,
		Bundle:     models.EmptyBundle(movieID),
	}
	gen := s.state.Generation
	s.notify(s.state)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		bundle, err := s.fetcher.FetchDetails(ctx, movieID)
		s.apply(gen, bundle, err)
	}()
	return gen, done
}

func (s *Selection) apply(gen uint64, bundle *models.MovieDetailBundle, err error) {
	s.mu.Lock()
	if gen != s.state.Generation {
		s.mu.Unlock()
		metrics.StaleSelectionsDiscarded.Inc()
		slog.Debug("discarding stale selection", "generation", gen)
		return
	}
	s.state.Loading = false
	switch {
	case err != nil:
		if !errors.Is(err, context.Canceled) {
			slog.Error("failed to load movie details", "movie_id", s.state.MovieID, "error", err)
		}
		s.state.Error = ErrDetailsUnavailable.Error()
	case bundle != nil:
		s.state.Bundle = bundle
	}
	s.notify(s.state)
	s.mu.Unlock()
}

func (s *Selection) notify(st State) {
	if s.onApply != nil {
		s.onApply(st)
	}
}

// Snapshot returns the current detail state.
func (s *Selection) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close cancels any in-flight fetch.
func (s *Selection) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
