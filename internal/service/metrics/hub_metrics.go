package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	HubClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "recoboard",
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected websocket subscribers",
		},
	)

	HubBroadcasts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recoboard",
			Subsystem: "ws",
			Name:      "broadcasts_total",
			Help:      "Presentation payloads broadcast to subscribers",
		},
	)

	HubDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recoboard",
			Subsystem: "ws",
			Name:      "dropped_total",
			Help:      "Messages dropped or clients evicted, by reason",
		},
		[]string{"reason"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(HubClients, HubBroadcasts, HubDropped)
	})
}
