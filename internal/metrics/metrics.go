package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the router's Prometheus instrumentation: one counter per
// terminal Find outcome, a latency histogram, a round-count histogram, and
// gauges describing the currently loaded feed.
type Collector struct {
	reg *prometheus.Registry

	FindRequests prometheus.Counter
	FindFailures *prometheus.CounterVec // reason label: unreachable|unknown_stop|same_endpoints|not_configured|invalid_request|timeout|internal
	FindDuration prometheus.Histogram
	Rounds       prometheus.Histogram

	FeedStops  prometheus.Gauge
	FeedRoutes prometheus.Gauge
	FeedTrips  prometheus.Gauge

	NATSConnected prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FindRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_find_requests_total",
			Help: "Total number of Find requests served.",
		}),
		FindFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_find_failures_total",
			Help: "Find requests that returned an error, by reason.",
		}, []string{"reason"}),
		FindDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_find_duration_seconds",
			Help:    "Wall-clock duration of a Find call.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}),
		Rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_rounds_total",
			Help:    "Number of RAPTOR rounds a successful Find needed.",
			Buckets: prometheus.LinearBuckets(1, 1, 20),
		}),
		FeedStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_feed_stops",
			Help: "Number of stops in the currently loaded timetable.",
		}),
		FeedRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_feed_routes",
			Help: "Number of internal (direction-split) routes in the currently loaded timetable.",
		}),
		FeedTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_feed_trips",
			Help: "Number of trips in the currently loaded timetable.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		c.FindRequests, c.FindFailures, c.FindDuration, c.Rounds,
		c.FeedStops, c.FeedRoutes, c.FeedTrips, c.NATSConnected,
	)

	return c
}

// ReasonUnreachable and friends are reason label values for FindFailures;
// kept as constants so callers can't typo a reason into its own cardinality.
// natsrpc also reports "timeout" and "internal", which have no constant here.
const (
	ReasonUnreachable    = "unreachable"
	ReasonUnknownStop    = "unknown_stop"
	ReasonSameEndpoints  = "same_endpoints"
	ReasonNotConfigured  = "not_configured"
	ReasonInvalidRequest = "invalid_request"
)

func (c *Collector) FindRequestInc() { c.FindRequests.Inc() }

func (c *Collector) FindFailureInc(reason string) { c.FindFailures.WithLabelValues(reason).Inc() }

func (c *Collector) FindDurationObserve(d time.Duration) { c.FindDuration.Observe(d.Seconds()) }

func (c *Collector) RoundsObserve(n float64) { c.Rounds.Observe(n) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
