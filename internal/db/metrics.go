package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	maintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_maintenance_runs_total",
			Help: "Total number of maintenance operations",
		},
		[]string{"db"},
	)

	maintenanceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_maintenance_outcomes_total",
			Help: "Total number of maintenance operations by outcome",
		},
		[]string{"db", "status"},
	)

	maintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nftindexor_maintenance_duration_seconds",
			Help:    "Duration of maintenance operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"db"},
	)

	maintenanceLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nftindexor_maintenance_last_run_timestamp",
			Help: "Unix timestamp of the last maintenance run",
		},
		[]string{"db"},
	)

	maintenanceSpaceReclaimed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nftindexor_maintenance_space_reclaimed_bytes",
			Help: "Bytes reclaimed by the last maintenance run",
		},
		[]string{"db"},
	)

	walCheckpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_wal_checkpoint_total",
			Help: "Total number of WAL checkpoints",
		},
		[]string{"db", "mode"},
	)

	vacuumRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nftindexor_vacuum_total",
			Help: "Total number of VACUUM operations",
		},
		[]string{"db"},
	)

	dbSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nftindexor_db_size_bytes",
			Help: "Database size in bytes including WAL files",
		},
		[]string{"db"},
	)
)
