// Package recommend ranks and filters movie collections against a user's profile and watchlist.
package recommend

import (
	"sort"

	"cinesphere/internal/models"
)

// GenreMatchBonus is added to a movie's rating for each favourite genre it carries.
const GenreMatchBonus = 5.0

// Rank scores movies for a user and returns them best first.
//
// Movies already on the watchlist (any status) are never returned, and
// restricted movies are dropped for age-safe profiles. Ties keep input order.
func Rank(movies []models.Movie, profile models.UserProfile, watchlist []models.WatchlistEntry) []models.RankedMovie {
	saved := make(map[int]struct{}, len(watchlist))
	for _, w := range watchlist {
		saved[w.MovieID] = struct{}{}
	}
	favorites := make(map[string]struct{}, len(profile.FavoriteGenres))
	for _, g := range profile.FavoriteGenres {
		favorites[g] = struct{}{}
	}

	ranked := make([]models.RankedMovie, 0, len(movies))
	for _, m := range movies {
		if _, ok := saved[m.ID]; ok {
			continue
		}
		if !ageAllowed(m, profile) {
			continue
		}
		ranked = append(ranked, models.RankedMovie{Movie: m, Score: score(m, favorites)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func score(m models.Movie, favorites map[string]struct{}) float64 {
	s := m.Rating
	for _, g := range m.Genres {
		if _, ok := favorites[g]; ok {
			s += GenreMatchBonus
		}
	}
	return s
}

func ageAllowed(m models.Movie, profile models.UserProfile) bool {
	return !profile.AgeSafe || m.AgeRating != models.AgeRatingRestricted
}
