package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carimport/internal/adapters/http/perf"
)

type captured struct {
	path   string
	header http.Header
	body   map[string]any
}

func captureServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{path: r.URL.Path, header: r.Header.Clone()}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&c.body))
		got = append(got, c)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

var testEvent = Event{
	Name:      EventCarRequestSubmitted,
	URL:       "https://carimport.test/requests/new?utm=x",
	UserAgent: "Mozilla/5.0 test",
	IP:        "203.0.113.9",
	Props:     map[string]string{"make": "BMW"},
}

func TestPlausibleTracker(t *testing.T) {
	srv, got := captureServer(t, http.StatusAccepted)
	NewPlausibleTracker(srv.URL+"/", "carimport.test", nil).Track(context.Background(), testEvent)

	require.Len(t, *got, 1)
	c := (*got)[0]
	assert.Equal(t, "/api/event", c.path)
	assert.Equal(t, "Mozilla/5.0 test", c.header.Get("User-Agent"))
	assert.Equal(t, "203.0.113.9", c.header.Get("X-Forwarded-For"))
	assert.Equal(t, "car_request_submitted", c.body["name"])
	assert.Equal(t, "carimport.test", c.body["domain"])
	assert.Equal(t, map[string]any{"make": "BMW"}, c.body["props"])
}

func TestUmamiTracker(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK)
	NewUmamiTracker(srv.URL, "site-uuid", nil).Track(context.Background(), testEvent)

	require.Len(t, *got, 1)
	c := (*got)[0]
	assert.Equal(t, "/api/send", c.path)
	assert.Equal(t, "event", c.body["type"])
	payload := c.body["payload"].(map[string]any)
	assert.Equal(t, "site-uuid", payload["website"])
	assert.Equal(t, "carimport.test", payload["hostname"])
	assert.Equal(t, "/requests/new?utm=x", payload["url"])
	assert.Equal(t, "car_request_submitted", payload["name"])
}

func TestTracker_FailuresAreSwallowed(t *testing.T) {
	srv, got := captureServer(t, http.StatusInternalServerError)
	collector := perf.NewCollector(10)
	tr := Multi{
		NewPlausibleTracker(srv.URL, "d", collector),
		NewUmamiTracker(srv.URL, "w", collector),
		Noop{},
	}
	tr.Track(context.Background(), testEvent)

	assert.Len(t, *got, 2)
	snap := collector.Snapshot(time.Time{}, 10)
	failures := 0
	for _, s := range snap.SlowestCalls {
		failures += s.Failures
	}
	assert.Equal(t, 2, failures)
}
