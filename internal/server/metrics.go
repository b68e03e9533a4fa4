package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptbox_executions_total",
		Help: "Script executions by status and error kind.",
	}, []string{"status", "error_kind"})

	executionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scriptbox_execution_duration_seconds",
		Help:    "Wall-clock duration of script executions.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})
)

func observeExecution(status, errorKind string, d time.Duration) {
	executionsTotal.WithLabelValues(status, errorKind).Inc()
	executionDuration.Observe(d.Seconds())
}
