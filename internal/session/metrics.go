package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "recorder",
		Name:      "sessions_active",
		Help:      "Number of attached recording sessions.",
	})
	metricRecordedActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recorder",
		Name:      "recorded_actions_total",
		Help:      "Actions appended to session streams, by kind.",
	}, []string{"kind"})
)
