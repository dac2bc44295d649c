package details

import (
	"sort"
	"strings"
	"time"

	"cinesphere/internal/catalog"
	"cinesphere/internal/models"
	"cinesphere/internal/tmdb"
)

const (
	maxSimilar = 6
	maxCredits = 3

	inTheatersWindow = 30 * 24 * time.Hour
	siteYouTube      = "YouTube"
	typeTrailer      = "Trailer"
)

// Preferred lookup order for provider and release regions.
const (
	countryIndia = "IN"
	countryUS    = "US"
)

var creditJobs = map[string]bool{
	"Director":   true,
	"Screenplay": true,
	"Writer":     true,
	"Novel":      true,
}

// SimilarMovies normalizes TMDB recommendations and keeps the first six.
func SimilarMovies(n catalog.Normalizer, resp *tmdb.PagedResponse) []models.Movie {
	if resp == nil {
		return []models.Movie{}
	}
	results := resp.Results
	if len(results) > maxSimilar {
		results = results[:maxSimilar]
	}
	return n.NormalizeAll(results)
}

// SelectTrailer picks a YouTube key: a YouTube trailer first, then any YouTube video,
// then whatever comes first. Non-YouTube picks yield "" since only YouTube embeds play.
func SelectTrailer(videos []tmdb.Video) string {
	if len(videos) == 0 {
		return ""
	}
	chosen := -1
	for i, v := range videos {
		if v.Type == typeTrailer && v.Site == siteYouTube {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		for i, v := range videos {
			if v.Site == siteYouTube {
				chosen = i
				break
			}
		}
	}
	if chosen < 0 {
		chosen = 0
	}
	if videos[chosen].Site != siteYouTube {
		return ""
	}
	return videos[chosen].Key
}

// PickProviders chooses the India providers, falling back to the US list reported as Global.
// It returns nil when neither region is present.
func PickProviders(n catalog.Normalizer, resp *tmdb.WatchProvidersResponse) *models.WatchProviderSet {
	if resp == nil {
		return nil
	}
	region := models.RegionIndia
	entry, ok := resp.Results[countryIndia]
	if !ok {
		region = models.RegionGlobal
		entry, ok = resp.Results[countryUS]
	}
	if !ok {
		return nil
	}
	return &models.WatchProviderSet{
		Streaming: dedupeProviders(n, entry.Flatrate),
		Rent:      dedupeProviders(n, entry.Rent),
		Buy:       dedupeProviders(n, entry.Buy),
		Region:    region,
		Link:      entry.Link,
	}
}

// ProviderKey is the name used to detect duplicate providers.
// All Amazon variants collapse into "prime".
func ProviderKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if strings.Contains(key, "amazon") || strings.Contains(key, "prime video") {
		return "prime"
	}
	return key
}

func dedupeProviders(n catalog.Normalizer, in []tmdb.Provider) []models.WatchProvider {
	out := make([]models.WatchProvider, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		key := ProviderKey(p.ProviderName)
		if seen[key] {
			continue
		}
		seen[key] = true
		wp := models.WatchProvider{ProviderID: p.ProviderID, ProviderName: p.ProviderName}
		if p.LogoPath != "" {
			wp.LogoURL = n.ImageURL(p.LogoPath)
		}
		out = append(out, wp)
	}
	return out
}

// ClassifyRelease derives the theatrical status from the latest India (else US) release.
// It returns nil when no usable release exists.
func ClassifyRelease(resp *tmdb.ReleaseDatesResponse, now time.Time) *models.TheatricalStatus {
	if resp == nil {
		return nil
	}
	country := findCountry(resp.Results, countryIndia)
	if country == nil {
		country = findCountry(resp.Results, countryUS)
	}
	if country == nil {
		return nil
	}

	type dated struct {
		at  time.Time
		typ int
	}
	var releases []dated
	for _, rd := range country.ReleaseDates {
		if at, ok := parseReleaseDate(rd.ReleaseDate); ok {
			releases = append(releases, dated{at, rd.Type})
		}
	}
	if len(releases) == 0 {
		return nil
	}
	sort.SliceStable(releases, func(i, j int) bool { return releases[i].at.After(releases[j].at) })
	latest := releases[0]

	status := models.StatusReleased
	switch {
	case latest.at.After(now):
		status = models.StatusUpcoming
	case now.Sub(latest.at) < inTheatersWindow:
		status = models.StatusInTheaters
	}
	return &models.TheatricalStatus{
		Date:        latest.at.Format("2 Jan 2006"),
		Status:      status,
		ReleaseType: latest.typ,
	}
}

func findCountry(results []tmdb.CountryReleases, code string) *tmdb.CountryReleases {
	for i := range results {
		if results[i].Country == code {
			return &results[i]
		}
	}
	return nil
}

func parseReleaseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// FilterCredits keeps director and writer credits in source order, at most three.
func FilterCredits(resp *tmdb.CreditsResponse) []models.Credit {
	out := make([]models.Credit, 0, maxCredits)
	if resp == nil {
		return out
	}
	for _, c := range resp.Crew {
		if !creditJobs[c.Job] {
			continue
		}
		out = append(out, models.Credit{PersonID: c.ID, Name: c.Name, Job: c.Job})
		if len(out) == maxCredits {
			break
		}
	}
	return out
}
