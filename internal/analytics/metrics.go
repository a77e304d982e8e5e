package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "optiwealth",
		Subsystem: "analytics_cache",
		Name:      "hits_total",
		Help:      "Analytics reads served from the session cache",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "optiwealth",
		Subsystem: "analytics_cache",
		Name:      "misses_total",
		Help:      "Analytics reads that found no usable entry",
	})

	cachePuts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "optiwealth",
		Subsystem: "analytics_cache",
		Name:      "puts_total",
		Help:      "Analytics payloads written to the session cache",
	})

	cacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "optiwealth",
		Subsystem: "analytics_cache",
		Name:      "invalidations_total",
		Help:      "Analytics entries invalidated by holding mutations or user action",
	})

	fetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "optiwealth",
		Subsystem: "analytics_cache",
		Name:      "fetch_failures_total",
		Help:      "Analytics fetches that returned an error and were not cached",
	})

	// staleDiscards counts fetch results dropped because the portfolio was
	// invalidated while the fetch was in flight.
	staleDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "optiwealth",
		Subsystem: "analytics_cache",
		Name:      "stale_discards_total",
		Help:      "Fetch results not cached because the portfolio changed mid-flight",
	})

	corruptEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "optiwealth",
		Subsystem: "analytics_cache",
		Name:      "corrupt_entries_total",
		Help:      "Stored entries that failed to decode and were dropped",
	})
)
