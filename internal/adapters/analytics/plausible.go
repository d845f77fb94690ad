package analytics

import (
	"context"
	"net/http"
	"strings"

	"carimport/internal/adapters/http/perf"
)

// PlausibleTracker posts to the Plausible Events API.
type PlausibleTracker struct {
	baseURL string
	domain  string
	poster
}

// NewPlausibleTracker targets baseURL (https://plausible.io or self-hosted)
// for the site registered as domain.
func NewPlausibleTracker(baseURL, domain string, collector *perf.Collector) *PlausibleTracker {
	return &PlausibleTracker{
		baseURL: strings.TrimRight(baseURL, "/"),
		domain:  domain,
		poster:  newPoster("plausible", collector),
	}
}

type plausibleEvent struct {
	Name     string            `json:"name"`
	URL      string            `json:"url"`
	Domain   string            `json:"domain"`
	Referrer string            `json:"referrer,omitempty"`
	Props    map[string]string `json:"props,omitempty"`
}

// Track sends e. Plausible identifies visitors from User-Agent and X-Forwarded-For.
func (t *PlausibleTracker) Track(ctx context.Context, e Event) {
	header := http.Header{}
	if e.UserAgent != "" {
		header.Set("User-Agent", e.UserAgent)
	}
	if e.IP != "" {
		header.Set("X-Forwarded-For", e.IP)
	}
	url := e.URL
	if url == "" {
		// server-side events without a page are attributed to the home page
		url = "https://" + t.domain + "/"
	}
	t.post(ctx, t.baseURL+"/api/event", plausibleEvent{
		Name:     e.Name,
		URL:      url,
		Domain:   t.domain,
		Referrer: e.Referrer,
		Props:    e.Props,
	}, header)
}
