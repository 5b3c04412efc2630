package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SourceSearchDuration observes how long each per-source search round-trip
// takes, including retries, labeled by source id.
var SourceSearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "vodmux_source_search_duration_seconds",
	Help:    "Duration of per-source search requests",
	Buckets: prometheus.DefBuckets,
}, []string{"source"})

// SourceErrors counts per-source failures. The "error_type" label separates
// transport, decode, and status errors so upstream flakiness can be told
// apart from format drift.
var SourceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vodmux_source_errors_total",
	Help: "Number of per-source failures",
}, []string{"source", "error_type"})

// ItemsDeduplicated counts catalog items dropped because another source (or
// an earlier page of the same source) already delivered the same
// (source_code, vod_id) pair in the running aggregation session.
var ItemsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vodmux_items_deduplicated_total",
	Help: "Catalog items dropped by aggregation dedup",
}, []string{"source"})

// SearchResults counts catalog items delivered to callers per source.
var SearchResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vodmux_search_results_total",
	Help: "Catalog items delivered per source",
}, []string{"source"})

// InFlightFetches tracks the number of upstream fetches currently in flight
// across all aggregation sessions. Bounded by the orchestrator's
// concurrency cap times the number of concurrent sessions.
var InFlightFetches = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "vodmux_inflight_fetches",
	Help: "Upstream fetches currently in flight",
})
