package tmdb

// ---- TMDB Response Types ----

// PagedResponse is the envelope of list endpoints (trending, search, recommendations).
type PagedResponse struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// Movie is a movie (or TV) record as returned in TMDB list results.
// Optional fields are pointers so absence can be told apart from zero.
type Movie struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	ReleaseDate  string   `json:"release_date"`
	FirstAirDate string   `json:"first_air_date"`
	VoteAverage  *float64 `json:"vote_average"`
	GenreIDs     []int    `json:"genre_ids"`
	Adult        bool     `json:"adult"`
	PosterPath   string   `json:"poster_path"`
	BackdropPath string   `json:"backdrop_path"`
	Overview     string   `json:"overview"`
}

// MovieDetail is the subset of /movie/{id} used by the detail view.
type MovieDetail struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Runtime *int   `json:"runtime"`
	Tagline string `json:"tagline"`
}

// Provider is a single watch provider entry.
type Provider struct {
	ProviderID   int    `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	LogoPath     string `json:"logo_path"`
}

// RegionProviders lists providers available in one country.
type RegionProviders struct {
	Link     string     `json:"link"`
	Flatrate []Provider `json:"flatrate"`
	Rent     []Provider `json:"rent"`
	Buy      []Provider `json:"buy"`
}

// WatchProvidersResponse is /movie/{id}/watch/providers, keyed by ISO 3166-1 code.
type WatchProvidersResponse struct {
	ID      int                        `json:"id"`
	Results map[string]RegionProviders `json:"results"`
}

// ReleaseDate is one dated release in a country.
type ReleaseDate struct {
	Certification string `json:"certification"`
	Note          string `json:"note"`
	ReleaseDate   string `json:"release_date"`
	Type          int    `json:"type"`
}

// CountryReleases groups release dates for a country.
type CountryReleases struct {
	Country      string        `json:"iso_3166_1"`
	ReleaseDates []ReleaseDate `json:"release_dates"`
}

// ReleaseDatesResponse is /movie/{id}/release_dates.
type ReleaseDatesResponse struct {
	ID      int               `json:"id"`
	Results []CountryReleases `json:"results"`
}

// Video is a trailer/teaser/clip entry.
type Video struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Site string `json:"site"`
	Type string `json:"type"`
}

// VideosResponse is /movie/{id}/videos.
type VideosResponse struct {
	ID      int     `json:"id"`
	Results []Video `json:"results"`
}

// CrewMember is a crew credit.
type CrewMember struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// CreditsResponse is /movie/{id}/credits.
type CreditsResponse struct {
	ID   int          `json:"id"`
	Crew []CrewMember `json:"crew"`
}
