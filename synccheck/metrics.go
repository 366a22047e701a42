package synccheck

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relset_sync_runs_total",
			Help: "Sync check runs by final status.",
		},
		[]string{"status"},
	)
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relset_sync_run_duration_seconds",
			Help:    "Wall time of sync check runs, successful or not.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
	violationsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relset_violations_opened_total",
			Help: "Violations opened by sync checks, by kind.",
		},
		[]string{"kind"},
	)
	violationsAutoResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relset_violations_auto_resolved_total",
			Help: "Open violations closed because their condition was no longer detected.",
		},
	)
	storeRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relset_entity_store_retries_total",
			Help: "Entity store calls retried after a transient failure.",
		},
	)
)
