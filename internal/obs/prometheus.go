package obs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"wardcore/pkg/domain"
)

// PrometheusRecorder implements Recorder on top of prometheus counters and
// histograms registered against the supplied registerer.
type PrometheusRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

// NewPrometheusRecorder constructs a recorder registered with reg. A nil
// registerer falls back to the default prometheus registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wardcore",
		Name:      "operation_duration_seconds",
		Help:      "Duration of engine, store, and forecast operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wardcore",
		Name:      "operation_results_total",
		Help:      "Operation outcomes by status.",
	}, []string{"operation", "status"})
	for _, collector := range []prometheus.Collector{durations, results} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return &PrometheusRecorder{durations: durations, results: results}, nil
}

// Observe implements Recorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// MetricGauges publishes the live scalar metric snapshot as prometheus
// gauges. The simulation engine pushes a snapshot after every tick.
type MetricGauges struct {
	scalars  *prometheus.GaugeVec
	bedsFree *prometheus.GaugeVec
}

// NewMetricGauges registers the dashboard gauges with reg.
func NewMetricGauges(reg prometheus.Registerer) (*MetricGauges, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	scalars := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wardcore",
		Name:      "metric_value",
		Help:      "Current scalar dashboard metric values.",
	}, []string{"metric"})
	bedsFree := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wardcore",
		Name:      "department_beds_available",
		Help:      "Available beds per department.",
	}, []string{"department"})
	for _, collector := range []prometheus.Collector{scalars, bedsFree} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return &MetricGauges{scalars: scalars, bedsFree: bedsFree}, nil
}

// Publish updates the gauges from a metric snapshot and bed ledger.
func (g *MetricGauges) Publish(snap domain.MetricSnapshot, beds []domain.DepartmentBeds) {
	g.scalars.WithLabelValues(string(domain.MetricEDLoad)).Set(snap.EDLoad)
	g.scalars.WithLabelValues(string(domain.MetricWaitingCount)).Set(float64(snap.WaitingCount))
	g.scalars.WithLabelValues(string(domain.MetricBedsFree)).Set(float64(snap.BedsFree))
	g.scalars.WithLabelValues(string(domain.MetricStaffLoad)).Set(snap.StaffLoad)
	g.scalars.WithLabelValues(string(domain.MetricRoomsFree)).Set(float64(snap.RoomsFree))
	g.scalars.WithLabelValues(string(domain.MetricORLoad)).Set(snap.ORLoad)
	g.scalars.WithLabelValues(string(domain.MetricTransportQueue)).Set(float64(snap.TransportQueue))
	g.scalars.WithLabelValues(string(domain.MetricInventoryRisk)).Set(float64(snap.InventoryCritical))
	for _, ledger := range beds {
		g.bedsFree.WithLabelValues(ledger.Department).Set(float64(ledger.Available))
	}
}
