package surface

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "recorder",
		Subsystem: "surface",
		Name:      "clients",
		Help:      "Connected control-surface clients.",
	})

	metricPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recorder",
		Subsystem: "surface",
		Name:      "pushes_total",
		Help:      "Messages broadcast to control-surface clients by method.",
	}, []string{"method"})

	metricFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recorder",
		Subsystem: "surface",
		Name:      "frames_total",
		Help:      "Inbound control-surface frames by outcome.",
	}, []string{"result"})
)
