package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhistory_source_fetches_total",
			Help: "Total station source file fetches",
		},
		[]string{"scheme", "status"},
	)

	SourceFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stationhistory_source_fetch_latency_seconds",
			Help:    "Station source file fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scheme"},
	)

	SourceCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhistory_source_cache_total",
			Help: "Source file cache lookups by result",
		},
		[]string{"result"},
	)

	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhistory_records_ingested_total",
			Help: "Total records successfully parsed",
		},
		[]string{"station"},
	)

	RowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhistory_rows_dropped_total",
			Help: "Rows dropped during parsing by reason",
		},
		[]string{"station", "reason"},
	)

	YearProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhistory_year_probes_total",
			Help: "Year discovery probes by result",
		},
		[]string{"result"},
	)

	ArchiveCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhistory_archive_calls_total",
			Help: "Climate archive API calls by status",
		},
		[]string{"status"},
	)

	BenchmarkCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationhistory_benchmark_cache_total",
			Help: "Wide benchmark series cache lookups by result",
		},
		[]string{"result"},
	)
)
