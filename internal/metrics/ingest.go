package metrics

import "github.com/prometheus/client_golang/prometheus"

// Page outcomes recorded by the ingestion pipeline.
const (
	OutcomeProcessed        = "processed"
	OutcomeSkippedDuplicate = "skipped_duplicate"
	OutcomeSkippedLanguage  = "skipped_language"
	OutcomeFailed           = "failed"
)

// Ingestion and query Prometheus metrics.
var (
	CrawlEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecgraph",
			Name:      "crawl_events_total",
			Help:      "Crawl lifecycle events received",
		},
		[]string{"type", "result"}, // result: "accepted" / "ignored" / "rejected"
	)

	IngestPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecgraph",
			Name:      "ingest_pages_total",
			Help:      "Pages handled by the ingestion pipeline by outcome",
		},
		[]string{"outcome"},
	)

	EmbedBatchesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vecgraph",
			Name:      "embed_batches_in_flight",
			Help:      "Embedding batches currently holding a concurrency slot",
		},
	)

	EmbedBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vecgraph",
			Name:      "embed_batch_size",
			Help:      "Documents per embedding batch",
			Buckets:   []float64{1, 5, 10, 20, 40, 60, 80},
		},
	)

	EmbedBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecgraph",
			Name:      "embed_batches_total",
			Help:      "Embedding batches by status",
		},
		[]string{"status"},
	)

	DedupUnavailableTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecgraph",
			Name:      "dedup_unavailable_total",
			Help:      "Dedup store calls that failed open",
		},
		[]string{"op"},
	)

	GraphWriteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecgraph",
			Name:      "graph_write_errors_total",
			Help:      "Best-effort graph writes that failed",
		},
		[]string{"op"},
	)

	QueryStrategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecgraph",
			Name:      "query_strategy_total",
			Help:      "Hybrid queries by retrieval strategy",
		},
		[]string{"strategy"},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers ingestion and query metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(CrawlEventsTotal)
	prometheus.MustRegister(IngestPagesTotal)
	prometheus.MustRegister(EmbedBatchesInFlight)
	prometheus.MustRegister(EmbedBatchSize)
	prometheus.MustRegister(EmbedBatchesTotal)
	prometheus.MustRegister(DedupUnavailableTotal)
	prometheus.MustRegister(GraphWriteErrorsTotal)
	prometheus.MustRegister(QueryStrategyTotal)
	ingestMetricsRegistered = true
}
