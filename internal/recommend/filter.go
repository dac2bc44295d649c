package recommend

import "cinesphere/internal/models"

// FilterForBrowse keeps movies suitable for the profile, optionally limited to one genre.
// An empty genre means no genre filter. Order is preserved.
//
// Unlike Rank, watchlisted movies stay visible here.
func FilterForBrowse(movies []models.Movie, profile models.UserProfile, genre string) []models.Movie {
	out := make([]models.Movie, 0, len(movies))
	for _, m := range movies {
		if !ageAllowed(m, profile) {
			continue
		}
		if genre != "" && !m.HasGenre(genre) {
			continue
		}
		out = append(out, m)
	}
	return out
}
