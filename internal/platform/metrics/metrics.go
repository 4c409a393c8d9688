// Package metrics defines the Prometheus instruments for the registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument the registry records.
type Metrics struct {
	TransfersRequested *prometheus.CounterVec
	TransfersResolved  *prometheus.CounterVec
	TransferFailures   *prometheus.CounterVec
	PollDelivered      prometheus.Counter
	PollAcked          prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New registers the registry instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		TransfersRequested: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "registry_transfers_requested_total",
			Help: "Transfer requests accepted, by resource kind.",
		}, []string{"kind"}),
		TransfersResolved: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "registry_transfers_resolved_total",
			Help: "Pending transfers resolved, by resource kind and outcome.",
		}, []string{"kind", "outcome"}),
		TransferFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "registry_transfer_failures_total",
			Help: "Rejected transfer operations, by error code.",
		}, []string{"code"}),
		PollDelivered: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "registry_poll_messages_delivered_total",
			Help: "Poll messages returned to registrars.",
		}),
		PollAcked: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "registry_poll_messages_acked_total",
			Help: "Poll messages acknowledged and removed.",
		}),
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registry_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// NewNop returns instruments registered on a throwaway registry, for tests
// and optional wiring.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
