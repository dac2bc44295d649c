package models

import "time"

// Watchlist statuses.
const (
	StatusWatchlist = "Watchlist"
	StatusWatched   = "Watched"
)

// Default profile values for a first session.
const DefaultProfileName = "Cinephile"

// DefaultFavoriteGenres is the favourite-genre set of a fresh profile.
var DefaultFavoriteGenres = []string{"Sci-Fi", "Drama"}

// UserProfile stores a user's display name and recommendation preferences.
type UserProfile struct {
	Name           string   `json:"name" bson:"name"`
	FavoriteGenres []string `json:"favoriteGenres" bson:"favorite_genres"`
	AgeSafe        bool     `json:"ageSafe" bson:"age_safe"`
}

// DefaultProfile returns the profile created on a user's first session.
func DefaultProfile(name string) UserProfile {
	if name == "" {
		name = DefaultProfileName
	}
	return UserProfile{
		Name:           name,
		FavoriteGenres: append([]string(nil), DefaultFavoriteGenres...),
	}
}

// ProfileUpdate is a partial profile update; nil fields are left unchanged.
type ProfileUpdate struct {
	Name           *string  `json:"name" validate:"omitempty,max=100"`
	FavoriteGenres []string `json:"favoriteGenres" validate:"omitempty,max=32,dive,required,max=50"`
	AgeSafe        *bool    `json:"ageSafe"`
}

// Apply returns p with the update merged in.
func (u ProfileUpdate) Apply(p UserProfile) UserProfile {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.FavoriteGenres != nil {
		p.FavoriteGenres = append([]string(nil), u.FavoriteGenres...)
	}
	if u.AgeSafe != nil {
		p.AgeSafe = *u.AgeSafe
	}
	return p
}

// WatchlistEntry is one saved movie for a user, unique by MovieID.
type WatchlistEntry struct {
	MovieID   int       `json:"movieId" bson:"movie_id"`
	Title     string    `json:"title" bson:"title"`
	Poster    string    `json:"poster" bson:"poster"`
	Status    string    `json:"status" bson:"status"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// ValidWatchlistStatus reports whether s is a known watchlist status.
func ValidWatchlistStatus(s string) bool {
	return s == StatusWatchlist || s == StatusWatched
}

// ToggleWatchlistRequest is the request body for toggling a watchlist entry.
type ToggleWatchlistRequest struct {
	MovieID int    `json:"movieId" validate:"required,gt=0"`
	Title   string `json:"title" validate:"required,max=500"`
	Poster  string `json:"poster" validate:"omitempty,max=1000"`
	Status  string `json:"status" validate:"omitempty,oneof=Watchlist Watched"`
}

// SearchRequest is the request body for a debounced feed search.
type SearchRequest struct {
	Query string `json:"query" validate:"max=200"`
}

// SelectionRequest selects a movie for the detail view.
type SelectionRequest struct {
	MovieID int `json:"movieId" validate:"required,gt=0"`
}
