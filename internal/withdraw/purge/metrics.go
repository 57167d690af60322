package purge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess     = "success"
	outcomeRetry       = "retry"
	outcomeFailed      = "failed"
	outcomeBookkeeping = "bookkeeping_error"
)

var (
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ums",
		Subsystem: "withdraw",
		Name:      "purge_items_total",
		Help:      "Purge attempts by target status and outcome.",
	}, []string{"target", "outcome"})

	runSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ums",
		Subsystem: "withdraw",
		Name:      "purge_run_seconds",
		Help:      "Duration of one purge pass.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"target"})
)
