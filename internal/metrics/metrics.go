package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database metrics
	dbQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"db", "operation"},
	)

	dbQueryTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nftindexor_db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"db", "operation"},
	)

	dbErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"db", "operation"},
	)

	// Indexing metrics
	LastIndexedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nftindexor_last_indexed_block",
			Help: "The last block number successfully indexed",
		},
		[]string{"indexer"},
	)

	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
		[]string{"indexer"},
	)

	LogsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_logs_indexed_total",
			Help: "Total number of logs indexed",
		},
		[]string{"indexer"},
	)

	BlockProcessingTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nftindexor_block_processing_duration_seconds",
			Help:    "Time taken to process a batch of blocks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"indexer"},
	)

	IndexingRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nftindexor_indexing_rate_blocks_per_second",
			Help: "Current indexing rate in blocks per second",
		},
		[]string{"indexer"},
	)

	// Domain metrics
	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_events_handled_total",
			Help: "Total number of decoded events applied, by event",
		},
		[]string{"event"},
	)

	EventsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nftindexor_events_deduplicated_total",
			Help: "Total number of redelivered events skipped because they were already applied",
		},
	)

	SkippedReferences = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_skipped_references_total",
			Help: "Total number of events ignored because a referenced entity was missing",
		},
		[]string{"component", "entity"},
	)

	TransfersRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_transfers_total",
			Help: "Total number of transfers recorded, by transfer type",
		},
		[]string{"type"},
	)

	PendingResidue = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nftindexor_pending_transfer_residue_total",
			Help: "Total number of settlement breadcrumbs discarded without a matching transfer",
		},
	)

	WatchersRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_watchers_registered_total",
			Help: "Total number of collection watchers registered, by token standard",
		},
		[]string{"standard"},
	)

	Refetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nftindexor_refetches_total",
			Help: "Total number of ranges re-fetched because watchers were registered mid-range",
		},
	)

	OperatorSetObserved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nftindexor_operator_set_observed_total",
			Help: "Total number of ERC6909 OperatorSet events observed",
		},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nftindexor_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nftindexor_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nftindexor_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nftindexor_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func DBQueryInc(db string, operation string) {
	dbQueries.WithLabelValues(db, operation).Inc()
}

func DBQueryDuration(db string, operation string, duration time.Duration) {
	dbQueryTime.WithLabelValues(db, operation).Observe(duration.Seconds())
}

func DBErrorsInc(db string, operation string) {
	dbErrors.WithLabelValues(db, operation).Inc()
}

func BlockProcessingTimeLog(indexer string, duration time.Duration) {
	BlockProcessingTime.WithLabelValues(indexer).Observe(duration.Seconds())
}

func LastIndexedBlockInc(indexer string, blockNum uint64) {
	LastIndexedBlock.WithLabelValues(indexer).Set(float64(blockNum))
}

func BlocksProcessedInc(indexer string, count uint64) {
	BlocksProcessed.WithLabelValues(indexer).Add(float64(count))
}

func LogsIndexedInc(indexer string, count int) {
	LogsIndexed.WithLabelValues(indexer).Add(float64(count))
}

func IndexingRateLog(indexer string, rate float64) {
	IndexingRate.WithLabelValues(indexer).Set(rate)
}

func EventHandledInc(event string) {
	EventsHandled.WithLabelValues(event).Inc()
}

func EventDeduplicatedInc() {
	EventsDeduplicated.Inc()
}

// SkippedReferenceInc counts an event dropped because entity was not found.
func SkippedReferenceInc(component, entity string) {
	SkippedReferences.WithLabelValues(component, entity).Inc()
}

func TransferRecordedInc(transferType string) {
	TransfersRecorded.WithLabelValues(transferType).Inc()
}

func PendingResidueInc(count int) {
	PendingResidue.Add(float64(count))
}

func WatcherRegisteredInc(standard string) {
	WatchersRegistered.WithLabelValues(standard).Inc()
}

func RefetchInc() {
	Refetches.Inc()
}

func OperatorSetObservedInc() {
	OperatorSetObserved.Inc()
}

func ErrorsInc(component, severity string) {
	Errors.WithLabelValues(component, severity).Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics refreshes uptime, goroutine and memory gauges.
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())
	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
