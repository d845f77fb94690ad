// Package analytics sends server-side events to Plausible and Umami.
// Tracking is best effort: failures are logged and never returned.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"carimport/internal/adapters/http/perf"
)

// Event names tracked by the application.
const (
	EventCarRequestSubmitted = "car_request_submitted"
	EventOfferAccepted       = "offer_accepted"
	EventDocumentUploaded    = "document_uploaded"
	EventCalculatorUsed      = "calculator_used"
	EventAccountRegistered   = "account_registered"
)

// Event is one server-side analytics event.
type Event struct {
	Name      string
	URL       string // page the event belongs to, absolute
	Referrer  string
	UserAgent string
	IP        string
	Props     map[string]string
}

// Tracker records events.
type Tracker interface {
	Track(ctx context.Context, e Event)
}

// Noop discards events.
type Noop struct{}

// Track does nothing.
func (Noop) Track(context.Context, Event) {}

// Multi fans an event out to several trackers in turn.
type Multi []Tracker

// Track forwards e to every tracker.
func (m Multi) Track(ctx context.Context, e Event) {
	for _, t := range m {
		t.Track(ctx, e)
	}
}

type poster struct {
	name      string
	client    *http.Client
	collector *perf.Collector
}

func newPoster(name string, collector *perf.Collector) poster {
	return poster{name: name, client: &http.Client{Timeout: 5 * time.Second}, collector: collector}
}

// post sends a JSON body. Failures are logged only.
func (p poster) post(ctx context.Context, url string, body any, header http.Header) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.Error("analytics_encode_failed", "provider", p.name, "error", err)
		return
	}
	start := time.Now()
	err = p.do(ctx, url, data, header)
	p.collector.ObserveCall("analytics."+p.name, start, err)
	if err != nil {
		slog.Warn("analytics_track_failed", "provider", p.name, "error", err)
	}
}

func (p poster) do(ctx context.Context, url string, data []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
