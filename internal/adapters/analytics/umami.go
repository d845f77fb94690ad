package analytics

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"carimport/internal/adapters/http/perf"
)

// UmamiTracker posts to the Umami /api/send endpoint.
type UmamiTracker struct {
	baseURL   string
	websiteID string
	poster
}

// NewUmamiTracker targets baseURL (Umami Cloud or self-hosted) for websiteID.
func NewUmamiTracker(baseURL, websiteID string, collector *perf.Collector) *UmamiTracker {
	return &UmamiTracker{
		baseURL:   strings.TrimRight(baseURL, "/"),
		websiteID: websiteID,
		poster:    newPoster("umami", collector),
	}
}

type umamiPayload struct {
	Website  string            `json:"website"`
	Hostname string            `json:"hostname"`
	URL      string            `json:"url"`
	Referrer string            `json:"referrer,omitempty"`
	Name     string            `json:"name"`
	Data     map[string]string `json:"data,omitempty"`
}

type umamiBody struct {
	Type    string       `json:"type"`
	Payload umamiPayload `json:"payload"`
}

// Track sends e. Umami rejects requests without a browser-like User-Agent.
func (t *UmamiTracker) Track(ctx context.Context, e Event) {
	host, path := "", e.URL
	if u, err := url.Parse(e.URL); err == nil && u.Host != "" {
		host, path = u.Hostname(), u.RequestURI()
	}
	if path == "" {
		path = "/"
	}
	ua := e.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (compatible; carimport-server)"
	}
	header := http.Header{}
	header.Set("User-Agent", ua)
	if e.IP != "" {
		header.Set("X-Forwarded-For", e.IP)
	}
	t.post(ctx, t.baseURL+"/api/send", umamiBody{
		Type: "event",
		Payload: umamiPayload{
			Website:  t.websiteID,
			Hostname: host,
			URL:      path,
			Referrer: e.Referrer,
			Name:     e.Name,
			Data:     e.Props,
		},
	}, header)
}
