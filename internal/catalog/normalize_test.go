package catalog

import (
	"math"
	"reflect"
	"testing"

	"cinesphere/internal/models"
	"cinesphere/internal/tmdb"
)

func ptr(f float64) *float64 { return &f }

func TestNormalizeFullRecord(t *testing.T) {
	n := NewNormalizer("https://img.example/w500/")
	got := n.Normalize(tmdb.Movie{
		ID:           603,
		Title:        "The Matrix",
		ReleaseDate:  "1999-03-30",
		VoteAverage:  ptr(8.217),
		GenreIDs:     []int{28, 878},
		PosterPath:   "/p.jpg",
		BackdropPath: "/b.jpg",
		Overview:     "Neo wakes up.",
	})

	want := models.Movie{
		ID:        603,
		Title:     "The Matrix",
		Year:      "1999",
		Rating:    8.2,
		Genres:    []string{"Action", "Sci-Fi"},
		AgeRating: models.AgeRatingGeneral,
		Poster:    "https://img.example/w500/p.jpg",
		Backdrop:  "https://img.example/w500/b.jpg",
		Plot:      "Neo wakes up.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize =\n%+v\nwant\n%+v", got, want)
	}
}

func TestNormalizeMissingGenresAndAdult(t *testing.T) {
	got := Normalizer{}.Normalize(tmdb.Movie{ID: 1, Title: "x"})
	if !reflect.DeepEqual(got.Genres, []string{"Drama"}) {
		t.Errorf("genres = %v, want [Drama]", got.Genres)
	}
	if got.AgeRating != "PG-13" {
		t.Errorf("ageRating = %q, want PG-13", got.AgeRating)
	}
	if got.Rating != 0 {
		t.Errorf("rating = %v, want 0", got.Rating)
	}
	if got.Poster != PlaceholderPoster || got.Backdrop != "" || got.Plot != DefaultPlot {
		t.Errorf("unexpected fallbacks: %+v", got)
	}
	if got.Year != "" {
		t.Errorf("year = %q, want empty", got.Year)
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		raw   tmdb.Movie
		check func(t *testing.T, m models.Movie)
	}{
		{
			name: "name used when title missing",
			raw:  tmdb.Movie{Name: "Dark", FirstAirDate: "2017-12-01"},
			check: func(t *testing.T, m models.Movie) {
				if m.Title != "Dark" || m.Year != "2017" {
					t.Errorf("got title=%q year=%q", m.Title, m.Year)
				}
			},
		},
		{
			name: "release date preferred over first air date",
			raw:  tmdb.Movie{ReleaseDate: "2001-01-01", FirstAirDate: "1990-01-01"},
			check: func(t *testing.T, m models.Movie) {
				if m.Year != "2001" {
					t.Errorf("year = %q", m.Year)
				}
			},
		},
		{
			name: "unmapped genre codes dropped",
			raw:  tmdb.Movie{GenreIDs: []int{99999, 27}},
			check: func(t *testing.T, m models.Movie) {
				if !reflect.DeepEqual(m.Genres, []string{"Horror"}) {
					t.Errorf("genres = %v", m.Genres)
				}
			},
		},
		{
			name: "only unmapped codes fall back to Drama",
			raw:  tmdb.Movie{GenreIDs: []int{1, 2}},
			check: func(t *testing.T, m models.Movie) {
				if !reflect.DeepEqual(m.Genres, []string{"Drama"}) {
					t.Errorf("genres = %v", m.Genres)
				}
			},
		},
		{
			name: "adult is R",
			raw:  tmdb.Movie{Adult: true},
			check: func(t *testing.T, m models.Movie) {
				if m.AgeRating != "R" {
					t.Errorf("ageRating = %q", m.AgeRating)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Normalizer{}.Normalize(tt.raw))
		})
	}
}

func TestNormalizeRatingStaysInRange(t *testing.T) {
	for _, v := range []float64{-3, 0, 4.25, 9.96, 10, 42, math.NaN(), math.Inf(1)} {
		m := Normalizer{}.Normalize(tmdb.Movie{VoteAverage: ptr(v)})
		if math.IsNaN(m.Rating) || m.Rating < 0 || m.Rating > 10 {
			t.Errorf("rating for %v = %v, out of range", v, m.Rating)
		}
		if len(m.Genres) == 0 || m.Poster == "" {
			t.Errorf("defaults missing for %v: %+v", v, m)
		}
	}
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	out := Normalizer{}.NormalizeAll([]tmdb.Movie{{ID: 3}, {ID: 1}, {ID: 2}})
	if len(out) != 3 || out[0].ID != 3 || out[1].ID != 1 || out[2].ID != 2 {
		t.Fatalf("order not preserved: %+v", out)
	}
}
