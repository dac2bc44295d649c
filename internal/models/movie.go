package models

// Age ratings derived from TMDB's adult flag.
const (
	AgeRatingRestricted = "R"
	AgeRatingGeneral    = "PG-13"
)

// Movie is the normalized movie shape served to clients.
type Movie struct {
	ID        int      `json:"id"`
	Title     string   `json:"title"`
	Year      string   `json:"year"`
	Rating    float64  `json:"rating"`
	Genres    []string `json:"genres"`
	AgeRating string   `json:"ageRating"`
	Poster    string   `json:"poster"`
	Backdrop  string   `json:"backdrop,omitempty"`
	Plot      string   `json:"plot"`
}

// HasGenre reports whether the movie is tagged with genre.
func (m Movie) HasGenre(genre string) bool {
	for _, g := range m.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// RankedMovie is a movie with its recommendation score attached.
type RankedMovie struct {
	Movie
	Score float64 `json:"score"`
}

// Release status labels.
const (
	StatusUpcoming   = "Upcoming"
	StatusInTheaters = "In Theaters"
	StatusReleased   = "Released"
)

// Watch provider regions.
const (
	RegionIndia  = "IN"
	RegionGlobal = "Global"
)

// WatchProvider is one streaming/rent/buy option.
type WatchProvider struct {
	ProviderID   int    `json:"providerId"`
	ProviderName string `json:"providerName"`
	LogoURL      string `json:"logoUrl"`
}

// WatchProviderSet groups providers for the chosen region.
type WatchProviderSet struct {
	Streaming []WatchProvider `json:"streaming"`
	Rent      []WatchProvider `json:"rent"`
	Buy       []WatchProvider `json:"buy"`
	Region    string          `json:"region,omitempty"`
	Link      string          `json:"link,omitempty"`
}

// TheatricalStatus describes where a movie is in its release cycle.
type TheatricalStatus struct {
	Date        string `json:"date"`
	Status      string `json:"status"`
	ReleaseType int    `json:"releaseType"`
}

// Credit is a crew member shown on the detail view.
type Credit struct {
	PersonID int    `json:"personId"`
	Name     string `json:"name"`
	Job      string `json:"job"`
}

// MovieDetailBundle is the merged result of the per-movie detail fetches.
type MovieDetailBundle struct {
	MovieID          int               `json:"movieId"`
	SimilarMovies    []Movie           `json:"similarMovies"`
	WatchProviders   *WatchProviderSet `json:"watchProviders"`
	TheatricalStatus *TheatricalStatus `json:"theatricalStatus"`
	TrailerKey       string            `json:"trailerKey,omitempty"`
	Runtime          *int              `json:"runtime,omitempty"`
	Tagline          string            `json:"tagline,omitempty"`
	Credits          []Credit          `json:"credits"`
}

// EmptyBundle returns a bundle with every field in its empty/absent state.
func EmptyBundle(movieID int) *MovieDetailBundle {
	return &MovieDetailBundle{
		MovieID:       movieID,
		SimilarMovies: []Movie{},
		Credits:       []Credit{},
	}
}
