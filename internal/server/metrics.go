package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rejected prometheus.Counter
	sessions prometheus.Counter
	backups  prometheus.Counter
	wsConns  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionguard_requests_total",
			Help: "Session API requests by endpoint and result.",
		}, []string{"endpoint", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sessionguard_request_duration_seconds",
			Help:    "Session API request latency.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"endpoint"}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "sessionguard_rate_limited_total",
			Help: "Requests rejected by the per-session rate limiter.",
		}),
		sessions: f.NewCounter(prometheus.CounterOpts{
			Name: "sessionguard_sessions_created_total",
			Help: "Sessions created.",
		}),
		backups: f.NewCounter(prometheus.CounterOpts{
			Name: "sessionguard_backups_created_total",
			Help: "Session backups saved.",
		}),
		wsConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "sessionguard_ws_connections",
			Help: "Open status push connections.",
		}),
	}
}
