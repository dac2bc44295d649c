// Package providerlink builds "watch on" URLs for streaming platforms.
package providerlink

import (
	"net/url"
	"strings"
)

// Template placeholders: {q} is the query-escaped title, {p} the path-escaped title.
type route struct {
	keywords []string
	template string
}

// Evaluated in order; the first matching keyword wins.
var routes = []route{
	{[]string{"netflix"}, "https://www.netflix.com/search?q={q}"},
	{[]string{"prime", "amazon"}, "https://www.primevideo.com/search/ref=atv_nb_sr?phrase={q}"},
	{[]string{"hotstar", "disney"}, "https://www.hotstar.com/in/search?q={q}"},
	{[]string{"apple"}, "https://tv.apple.com/search?term={q}"},
	{[]string{"zee5"}, "https://www.zee5.com/search?q={q}"},
	{[]string{"justwatch"}, "https://www.justwatch.com/in/search?q={q}"},
	{[]string{"google play"}, "https://play.google.com/store/search?q={q}&c=movies"},
	{[]string{"youtube"}, "https://www.youtube.com/results?search_query={q}"},
	{[]string{"jiocinema", "jio cinema"}, "https://www.jiocinema.com/search/{p}"},
	{[]string{"sony"}, "https://www.sonyliv.com/search?searchTerm={q}"},
}

// Build returns a URL where title can be watched on providerName.
// Unknown providers get a web search; the result is always a valid URL.
func Build(providerName, title, year string) string {
	if r, ok := match(providerName); ok {
		return strings.NewReplacer(
			"{q}", url.QueryEscape(title),
			"{p}", url.PathEscape(title),
		).Replace(r.template)
	}
	q := strings.Join(strings.Fields("where to watch "+title+" "+year+" online streaming"), " ")
	return "https://www.google.com/search?q=" + url.QueryEscape(q)
}

func match(providerName string) (route, bool) {
	name := strings.ToLower(strings.TrimSpace(providerName))
	if name == "" {
		return route{}, false
	}
	for _, r := range routes {
		for _, kw := range r.keywords {
			if strings.Contains(name, kw) {
				return r, true
			}
		}
	}
	return route{}, false
}
