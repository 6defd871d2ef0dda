package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every hashfeed collector. It is separate from the default
// registry so a crawl can be exported to a textfile without Go runtime noise.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	FetchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hashfeed_fetch_duration_seconds",
			Help:    "Time spent downloading the feed",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	FetchFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "hashfeed_fetch_failures_total",
			Help: "Feed downloads that failed",
		},
	)

	RowsParsed = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "hashfeed_rows_parsed_total",
			Help: "CSV rows decoded from the feed",
		},
	)

	RowsSkipped = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "hashfeed_rows_skipped_total",
			Help: "Feed rows dropped for missing columns or bad quoting",
		},
	)

	DuplicateHashes = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "hashfeed_duplicate_hashes_total",
			Help: "Feed rows that replaced an earlier row with the same hash",
		},
	)

	RecordsWritten = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "hashfeed_records_written",
			Help: "Rows in the last written output file",
		},
	)

	LastSuccess = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "hashfeed_last_success_timestamp_seconds",
			Help: "Unix time of the last completed crawl",
		},
	)

	IndexSize = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "hashfeed_index_records",
			Help: "Records held by the lookup index",
		},
	)

	Lookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hashfeed_lookups_total",
			Help: "Hash lookups by outcome",
		},
		[]string{"result"},
	)

	Reloads = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hashfeed_index_reloads_total",
			Help: "Index reloads triggered by output file changes",
		},
		[]string{"status"},
	)
)

var runtimeOnce sync.Once

// RegisterRuntime adds Go and process collectors, for long-running modes.
func RegisterRuntime() {
	runtimeOnce.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
