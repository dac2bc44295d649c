// Package catalog maps TMDB movie records into the internal Movie shape.
package catalog

import (
	"math"
	"strings"

	"cinesphere/internal/models"
	"cinesphere/internal/tmdb"
)

const (
	// DefaultImageBaseURL is TMDB's w500 poster base.
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/w500"
	// PlaceholderPoster is used when TMDB has no poster.
	PlaceholderPoster = "https://images.unsplash.com/photo-1485846234645-a62644f84728?auto=format&fit=crop&q=80&w=800"
	// DefaultPlot is used when TMDB has no overview.
	DefaultPlot = "No description available."
	// FallbackGenre is used when no genre code maps to a name.
	FallbackGenre = "Drama"
)

var genreNames = map[int]string{
	28:    "Action",
	12:    "Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	14:    "Fantasy",
	36:    "History",
	27:    "Horror",
	10402: "Music",
	9648:  "Mystery",
	10749: "Romance",
	878:   "Sci-Fi",
	10770: "TV Movie",
	53:    "Thriller",
	10752: "War",
	37:    "Western",
}

var selectableGenres = []string{
	"Action", "Sci-Fi", "Drama", "Crime", "Animation", "Thriller", "Adventure",
	"Family", "Comedy", "Horror", "Mystery", "Romance", "Fantasy",
}

// Genres returns the genres a user can pick as favourites or browse by.
func Genres() []string {
	return append([]string(nil), selectableGenres...)
}

// GenreName returns the display name for a TMDB genre code.
func GenreName(code int) (string, bool) {
	name, ok := genreNames[code]
	return name, ok
}

// Normalizer turns raw TMDB records into models.Movie. The zero value uses DefaultImageBaseURL.
type Normalizer struct {
	ImageBaseURL string
}

// NewNormalizer creates a Normalizer for the given image base URL.
func NewNormalizer(imageBaseURL string) Normalizer {
	return Normalizer{ImageBaseURL: strings.TrimRight(imageBaseURL, "/")}
}

// Normalize maps one record. It never fails; missing fields take their defaults.
func (n Normalizer) Normalize(raw tmdb.Movie) models.Movie {
	m := models.Movie{
		ID:        raw.ID,
		Title:     raw.Title,
		Year:      year(raw.ReleaseDate, raw.FirstAirDate),
		Rating:    rating(raw.VoteAverage),
		Genres:    genres(raw.GenreIDs),
		AgeRating: models.AgeRatingGeneral,
		Poster:    PlaceholderPoster,
		Plot:      raw.Overview,
	}
	if m.Title == "" {
		m.Title = raw.Name
	}
	if raw.Adult {
		m.AgeRating = models.AgeRatingRestricted
	}
	if raw.PosterPath != "" {
		m.Poster = n.ImageURL(raw.PosterPath)
	}
	if raw.BackdropPath != "" {
		m.Backdrop = n.ImageURL(raw.BackdropPath)
	}
	if m.Plot == "" {
		m.Plot = DefaultPlot
	}
	return m
}

// NormalizeAll maps records in order.
func (n Normalizer) NormalizeAll(raws []tmdb.Movie) []models.Movie {
	out := make([]models.Movie, 0, len(raws))
	for _, r := range raws {
		out = append(out, n.Normalize(r))
	}
	return out
}

// ImageURL joins an image path onto the configured base.
func (n Normalizer) ImageURL(path string) string {
	base := n.ImageBaseURL
	if base == "" {
		base = DefaultImageBaseURL
	}
	return base + path
}

func year(releaseDate, firstAirDate string) string {
	date := releaseDate
	if date == "" {
		date = firstAirDate
	}
	y, _, _ := strings.Cut(date, "-")
	return y
}

func rating(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	r := math.Round(*v*10) / 10
	return math.Max(0, math.Min(10, r))
}

func genres(codes []int) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if name, ok := genreNames[c]; ok {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return []string{FallbackGenre}
	}
	return out
}
