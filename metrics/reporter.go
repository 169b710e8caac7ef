// Package metrics emits connection and request counters over statsd,
// loosely grounded on gorouter's metrics/reporter concept of a thin
// wrapper chosen so call sites never import the statsd client directly.
package metrics

import (
	"time"

	"github.com/cactus/go-statsd-client/statsd"
)

// Reporter is the subset of statsd a sanic-go worker needs: connection
// lifecycle counters, request counters, and response-time timing.
type Reporter interface {
	ConnectionOpened()
	ConnectionClosed()
	RequestStarted()
	RequestCompleted(status int, elapsed time.Duration)
	Close() error
}

type statsdReporter struct {
	client statsd.Statter
}

// NewStatsdReporter dials addr (host:port of a statsd daemon) and tags
// every stat with prefix.
func NewStatsdReporter(addr, prefix string) (Reporter, error) {
	client, err := statsd.NewClient(addr, prefix)
	if err != nil {
		return nil, err
	}
	return &statsdReporter{client: client}, nil
}

func (r *statsdReporter) ConnectionOpened() {
	r.client.Inc("connections.opened", 1, 1.0)
	r.client.Gauge("connections.active", 1, 1.0)
}

func (r *statsdReporter) ConnectionClosed() {
	r.client.Inc("connections.closed", 1, 1.0)
	r.client.Gauge("connections.active", -1, 1.0)
}

func (r *statsdReporter) RequestStarted() {
	r.client.Inc("requests.started", 1, 1.0)
}

func (r *statsdReporter) RequestCompleted(status int, elapsed time.Duration) {
	r.client.Inc("requests.completed", 1, 1.0)
	r.client.Inc(statusStat(status), 1, 1.0)
	r.client.Timing("requests.response_time_ms", elapsed.Milliseconds(), 1.0)
}

func (r *statsdReporter) Close() error {
	return r.client.Close()
}

func statusStat(status int) string {
	switch {
	case status >= 500:
		return "requests.status.5xx"
	case status >= 400:
		return "requests.status.4xx"
	case status >= 300:
		return "requests.status.3xx"
	case status >= 200:
		return "requests.status.2xx"
	default:
		return "requests.status.1xx"
	}
}

// NoopReporter discards everything; used when no statsd_address is
// configured.
type NoopReporter struct{}

func (NoopReporter) ConnectionOpened()                                  {}
func (NoopReporter) ConnectionClosed()                                  {}
func (NoopReporter) RequestStarted()                                    {}
func (NoopReporter) RequestCompleted(status int, elapsed time.Duration) {}
func (NoopReporter) Close() error                                       { return nil }
