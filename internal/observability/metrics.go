package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Tasks           prometheus.Gauge
	Conflicts       prometheus.Gauge
	StreamClients   prometheus.Gauge
	ScheduleOps     *prometheus.CounterVec
	WellnessCalls   *prometheus.CounterVec
	AutoPlanLatency prometheus.Histogram

	window *opWindow
}

// NewMetrics registers the instruments with reg, or with the default
// registry when reg is nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Tasks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks",
			Help:      "Number of scheduled tasks.",
		}),
		Conflicts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conflicts",
			Help:      "Number of overlapping task pairs in the last schedule view.",
		}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected schedule websocket clients.",
		}),
		ScheduleOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_ops_total",
			Help:      "Scheduling operations by op and result.",
		}, []string{"op", "result"}),
		WellnessCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wellness_requests_total",
			Help:      "Wellness analyses by returned status.",
		}, []string{"status"}),
		AutoPlanLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auto_plan_latency_ms",
			Help:      "Time spent finding and committing an auto-planned slot in milliseconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		window: newOpWindow(256, 15*time.Minute),
	}
}

// ObserveOp counts one operation outcome and records its latency.
func (m *Metrics) ObserveOp(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScheduleOps.WithLabelValues(op, result).Inc()
	ms := float64(d.Microseconds()) / 1000
	if op == "auto_plan" {
		m.AutoPlanLatency.Observe(ms)
	}
	m.window.record(op, result, d)
}

func (m *Metrics) SetSchedule(tasks, conflicts int) {
	if m == nil {
		return
	}
	m.Tasks.Set(float64(tasks))
	m.Conflicts.Set(float64(conflicts))
}

func (m *Metrics) ObserveWellness(status string) {
	if m == nil {
		return
	}
	m.WellnessCalls.WithLabelValues(status).Inc()
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.StreamClients.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.StreamClients.Dec()
}

// LatencySnapshot summarizes recent operation outcomes and latencies.
func (m *Metrics) LatencySnapshot() OpSnapshot {
	if m == nil {
		return OpSnapshot{GeneratedAt: time.Now().UTC(), Ops: []OpStats{}}
	}
	return m.window.snapshot()
}

func (m *Metrics) ResetLatency() {
	if m == nil {
		return
	}
	m.window.reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
