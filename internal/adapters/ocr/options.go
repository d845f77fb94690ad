package ocr

import (
	"net/http"
	"time"

	"carimport/internal/adapters/http/perf"
)

type options struct {
	client       *http.Client
	collector    *perf.Collector
	endpoint     string
	pollInterval time.Duration
	maxPolls     int
}

// Option customises a provider.
type Option func(*options)

// WithHTTPClient replaces the default 60s client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithCollector records provider call timings.
func WithCollector(c *perf.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithEndpoint overrides the provider base URL.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

// WithPolling sets how often and how many times Azure results are polled.
func WithPolling(interval time.Duration, max int) Option {
	return func(o *options) {
		o.pollInterval = interval
		o.maxPolls = max
	}
}

func buildOptions(opts []Option) options {
	o := options{
		client:       &http.Client{Timeout: 60 * time.Second},
		pollInterval: time.Second,
		maxPolls:     60,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
