package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultPartial = "partial"
	ResultMissing = "not_found"
)

// CoordinatorMetrics tracks placement, lookup, recovery and delivery.
type CoordinatorMetrics struct {
	registry *prometheus.Registry

	Members prometheus.Gauge
	Objects prometheus.Gauge

	StoreOperations  *prometheus.CounterVec
	DeleteOperations *prometheus.CounterVec
	LookupOperations *prometheus.CounterVec
	StoreLatency     prometheus.Histogram

	PartUploads    *prometheus.CounterVec
	ProbeFailures  prometheus.Counter
	NodeFailures   prometheus.Counter
	FailureReports *prometheus.CounterVec

	SweepDuration      prometheus.Histogram
	ReplicasRecovered  prometheus.Counter
	RecoveryFailures   prometheus.Counter
	UnrecoverableParts prometheus.Counter

	Notifications *prometheus.CounterVec
	Subscribers   *prometheus.GaugeVec
}

// NewCoordinatorMetrics registers the coordinator metrics on a private
// registry so several coordinators can live in one process.
func NewCoordinatorMetrics() *CoordinatorMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &CoordinatorMetrics{
		registry: registry,

		Members: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geoeyes_members",
			Help: "Number of registered storage nodes",
		}),
		Objects: factory.NewGauge(prometheus.GaugeOpts{
			Name: "geoeyes_objects",
			Help: "Number of objects in the directory",
		}),

		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geoeyes_store_operations_total",
			Help: "StoreObject calls by result",
		}, []string{"result"}),
		DeleteOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geoeyes_delete_operations_total",
			Help: "DeleteObject calls by result",
		}, []string{"result"}),
		LookupOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geoeyes_lookup_operations_total",
			Help: "GetPartLocations calls by result",
		}, []string{"result"}),
		StoreLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoeyes_store_latency_seconds",
			Help:    "StoreObject latency including uploads and notifications",
			Buckets: prometheus.DefBuckets,
		}),

		PartUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geoeyes_part_uploads_total",
			Help: "Part uploads to storage nodes by result",
		}, []string{"result"}),
		ProbeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "geoeyes_probe_failures_total",
			Help: "Liveness probes that errored or answered negatively",
		}),
		NodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "geoeyes_node_failures_total",
			Help: "Members removed after failing the liveness sweep",
		}),
		FailureReports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geoeyes_failure_reports_total",
			Help: "Failure reports sent to the monitor by result",
		}, []string{"result"}),

		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoeyes_sweep_duration_seconds",
			Help:    "Duration of a liveness sweep including recovery",
			Buckets: prometheus.DefBuckets,
		}),
		ReplicasRecovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "geoeyes_replicas_recovered_total",
			Help: "Replicas re-created after a node failure",
		}),
		RecoveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "geoeyes_recovery_failures_total",
			Help: "Fetch or push failures during re-replication",
		}),
		UnrecoverableParts: factory.NewCounter(prometheus.CounterOpts{
			Name: "geoeyes_unrecoverable_parts_total",
			Help: "Parts left without any replica",
		}),

		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "geoeyes_notifications_total",
			Help: "Subscriber notifications by event type and result",
		}, []string{"event", "result"}),
		Subscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "geoeyes_subscribers",
			Help: "Subscribers per event type",
		}, []string{"event"}),
	}
}

func (m *CoordinatorMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *CoordinatorMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
