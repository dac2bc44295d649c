// Package repository persists user profiles and watchlists and publishes
// full-state snapshots whenever they change.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cinesphere/internal/metrics"
	"cinesphere/internal/models"
	"cinesphere/internal/stream"
)

// ErrNotFound is returned when a user has no stored profile.
var ErrNotFound = errors.New("not found")

// Store is the per-user persistence layer.
type Store interface {
	GetProfile(ctx context.Context, uid string) (*models.UserProfile, error)
	PutProfile(ctx context.Context, uid string, profile models.UserProfile) error
	ListWatchlist(ctx context.Context, uid string) ([]models.WatchlistEntry, error)
	PutWatchlistEntry(ctx context.Context, uid string, entry models.WatchlistEntry) error
	DeleteWatchlistEntry(ctx context.Context, uid string, movieID int) error
	// ToggleWatchlistEntry atomically removes the stored entry when it has entry's status,
	// otherwise upserts entry. It reports whether the entry was removed.
	ToggleWatchlistEntry(ctx context.Context, uid string, entry models.WatchlistEntry) (removed bool, err error)
	WatchProfile(ctx context.Context, uid string) (*stream.Subscription[models.UserProfile], error)
	WatchWatchlist(ctx context.Context, uid string) (*stream.Subscription[[]models.WatchlistEntry], error)
	Close() error
}

// StoreWriteError reports a failed write. Callers surface it to the user instead of dropping it.
type StoreWriteError struct {
	Op     string
	UserID string
	Err    error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store %s for user %s: %v", e.Op, e.UserID, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// Write operation names used in StoreWriteError and metrics.
const (
	OpPutProfile    = "put_profile"
	OpPutWatchlist  = "put_watchlist_entry"
	OpDeleteWatched = "delete_watchlist_entry"
	OpToggleWatched = "toggle_watchlist_entry"
)

func writeErr(op, uid string, err error) error {
	metrics.StoreWriteFailures.WithLabelValues(op).Inc()
	slog.Error("store write failed", "op", op, "user_id", uid, "error", err)
	return &StoreWriteError{Op: op, UserID: uid, Err: err}
}

// Change kinds carried by change notifications.
const (
	kindProfile   = "profile"
	kindWatchlist = "watchlist"
)

// snapshots holds the subscriber hubs shared by both store implementations.
type snapshots struct {
	profiles  *stream.Hub[models.UserProfile]
	watchlist *stream.Hub[[]models.WatchlistEntry]
}

func newSnapshots() snapshots {
	return snapshots{
		profiles:  stream.NewHub[models.UserProfile](),
		watchlist: stream.NewHub[[]models.WatchlistEntry](),
	}
}

func (s snapshots) close() {
	s.profiles.Close()
	s.watchlist.Close()
}

type loader[T any] func(ctx context.Context, uid string) (T, error)

// subscribe registers a subscription and primes it with the current snapshot.
func subscribe[T any](ctx context.Context, hub *stream.Hub[T], uid string, load loader[T]) (*stream.Subscription[T], error) {
	sub := hub.Subscribe(uid)
	v, err := load(ctx, uid)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		sub.Cancel()
		return nil, err
	default:
		sub.Offer(v)
	}
	return sub, nil
}

// refresh re-reads the full snapshot for uid and publishes it to current subscribers.
func refresh[T any](ctx context.Context, hub *stream.Hub[T], uid string, load loader[T]) {
	if hub.Count(uid) == 0 {
		return
	}
	v, err := load(ctx, uid)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("failed to reload snapshot", "user_id", uid, "error", err)
		}
		return
	}
	hub.Publish(uid, v)
}

func profileLoader(get func(context.Context, string) (*models.UserProfile, error)) loader[models.UserProfile] {
	return func(ctx context.Context, uid string) (models.UserProfile, error) {
		p, err := get(ctx, uid)
		if err != nil {
			return models.UserProfile{}, err
		}
		return *p, nil
	}
}
