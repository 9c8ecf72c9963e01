package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MetadataFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "holdings_metadata_fetches_total",
		Help: "Metadata resolutions by reference kind and result (ready, forbidden, failed)",
	}, []string{"kind", "result"})
	MetadataDeduplicatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holdings_metadata_deduplicated_total",
		Help: "Resolve calls that joined an in-flight fetch instead of starting one",
	})
	IngestedRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "holdings_ingested_records_total",
		Help: "Raw records accepted by the hierarchy builder",
	}, []string{"source"})
	MalformedRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "holdings_malformed_records_total",
		Help: "Raw records skipped because of impossible identifiers",
	}, []string{"source"})
	PlaceholdersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holdings_placeholders_total",
		Help: "Placeholder locations synthesized for parents not yet known",
	})
	InvalidationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holdings_invalidations_total",
		Help: "Upward invalidation walks triggered by tree or metadata mutation",
	})
	LoadDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "holdings_load_duration_seconds",
		Help:    "Duration of a holdings load by outcome",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"outcome"})
	ESIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "holdings_esi_requests_total",
		Help: "ESI requests by status class",
	}, []string{"status"})
	ESICacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "holdings_esi_cache_hits_total",
		Help: "ESI responses served from the response cache",
	})
	ESIRequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "holdings_esi_request_duration_ms",
		Help:    "ESI request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
	})
	LiveSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "holdings_live_subscribers",
		Help: "Open websocket live views",
	})
)

func init() {
	prometheus.MustRegister(MetadataFetchesTotal)
	prometheus.MustRegister(MetadataDeduplicatedTotal)
	prometheus.MustRegister(IngestedRecordsTotal)
	prometheus.MustRegister(MalformedRecordsTotal)
	prometheus.MustRegister(PlaceholdersTotal)
	prometheus.MustRegister(InvalidationsTotal)
	prometheus.MustRegister(LoadDurationSeconds)
	prometheus.MustRegister(ESIRequestsTotal)
	prometheus.MustRegister(ESICacheHitsTotal)
	prometheus.MustRegister(ESIRequestDurationMs)
	prometheus.MustRegister(LiveSubscribers)
}

// Handler exposes the registered collectors for scraping
func Handler() http.Handler { return promhttp.Handler() }
