package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cinesphere/internal/models"
	"cinesphere/internal/repository"
)

// ErrInvalidStatus is returned for a watchlist status other than Watchlist or Watched.
var ErrInvalidStatus = errors.New("invalid watchlist status")

// LibraryService manages a user's profile and watchlist.
type LibraryService struct {
	store repository.Store
	now   func() time.Time
}

// NewLibraryService creates a new LibraryService.
func NewLibraryService(store repository.Store) *LibraryService {
	return &LibraryService{store: store, now: time.Now}
}

// EnsureProfile returns the stored profile, creating the default one on first use.
func (s *LibraryService) EnsureProfile(ctx context.Context, uid, displayName string) (*models.UserProfile, error) {
	p, err := s.store.GetProfile(ctx, uid)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	def := models.DefaultProfile(displayName)
	if err := s.store.PutProfile(ctx, uid, def); err != nil {
		return nil, err
	}
	slog.Info("created default profile", "user_id", uid)
	return &def, nil
}

// Profile returns the stored profile, or the default profile if none exists yet.
func (s *LibraryService) Profile(ctx context.Context, uid string) (*models.UserProfile, error) {
	p, err := s.store.GetProfile(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		def := models.DefaultProfile("")
		return &def, nil
	}
	return p, err
}

// UpdateProfile merges upd into the current profile and stores the result.
func (s *LibraryService) UpdateProfile(ctx context.Context, uid string, upd models.ProfileUpdate) (*models.UserProfile, error) {
	current, err := s.Profile(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	merged := upd.Apply(*current)
	if merged.FavoriteGenres == nil {
		merged.FavoriteGenres = []string{}
	}
	if err := s.store.PutProfile(ctx, uid, merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Watchlist returns all of the user's watchlist entries.
func (s *LibraryService) Watchlist(ctx context.Context, uid string) ([]models.WatchlistEntry, error) {
	return s.store.ListWatchlist(ctx, uid)
}

// ToggleWatchlist adds the movie with status, or removes it when it is already stored with that status.
// It returns the stored entry, or nil when the entry was removed.
func (s *LibraryService) ToggleWatchlist(ctx context.Context, uid string, req models.ToggleWatchlistRequest) (*models.WatchlistEntry, error) {
	status := req.Status
	if status == "" {
		status = models.StatusWatchlist
	}
	if !models.ValidWatchlistStatus(status) {
		return nil, ErrInvalidStatus
	}

	entry := models.WatchlistEntry{
		MovieID:   req.MovieID,
		Title:     req.Title,
		Poster:    req.Poster,
		Status:    status,
		Timestamp: s.now().UTC(),
	}
	removed, err := s.store.ToggleWatchlistEntry(ctx, uid, entry)
	if err != nil {
		return nil, err
	}
	if removed {
		return nil, nil
	}
	return &entry, nil
}

// RemoveFromWatchlist deletes the movie regardless of its status.
func (s *LibraryService) RemoveFromWatchlist(ctx context.Context, uid string, movieID int) error {
	return s.store.DeleteWatchlistEntry(ctx, uid, movieID)
}
