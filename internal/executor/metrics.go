package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recorder",
		Name:      "commands_total",
		Help:      "Operator commands executed, by kind and final status.",
	}, []string{"kind", "status"})
	metricCommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "recorder",
		Name:      "command_duration_seconds",
		Help:      "Wall time of operator commands from start to terminal status.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"kind"})
)
