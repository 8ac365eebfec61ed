package observability

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"placeharvest/internal/domain"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harvest", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	PageActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "page_actions_total", Help: "Browser page actions."},
		[]string{"action", "outcome"}, // outcome: ok|timeout|error
	)
	PageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harvest", Name: "page_action_duration_seconds",
			Help:    "Browser page action duration seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"action"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	Candidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "candidates_total", Help: "Deduplicated candidates harvested."},
		[]string{"city"},
	)
	Records = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "records_written_total", Help: "Place records written to the sink."},
		[]string{"city"},
	)
	Skips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "skips_total", Help: "Skipped candidates and cities."},
		[]string{"scope", "reason"}, // scope: candidate|city
	)
	HarvesterStates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "harvester_transitions_total", Help: "Result harvester state transitions."},
		[]string{"state"},
	)
	SinkFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "sink_flushes_total", Help: "Sink flush batches."},
		[]string{"outcome"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
)

func init() {
	prometheus.MustRegister(PageActions, PageLatency, ExternalRequests, Candidates, Records,
		Skips, HarvesterStates, SinkFlushes, CacheEvents)
}

// Serve exposes the default registry on METRICS_ADDR. No-op when unset.
func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// InitRegistry builds a registry for the API process.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObservePage(action string, err error, dur time.Duration) {
	PageActions.WithLabelValues(action, Outcome(err)).Inc()
	PageLatency.WithLabelValues(action).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
}

func ObserveSkip(scope string, err error) {
	Skips.WithLabelValues(scope, Outcome(err)).Inc()
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

// Outcome collapses an error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrPageTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrCityUnresolved):
		return "unresolved"
	case errors.Is(err, domain.ErrDuplicateRecord):
		return "duplicate"
	default:
		return "error"
	}
}
