package job

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricsNamespace = "expression"
	MetricsSubsystem = "extraction"

	ResultLabel     = "result"
	ResultCompleted = "completed"
	ResultCancelled = "cancelled"
	ResultFailed    = "failed"
)

// Metrics of a Runner. A nil *Metrics records nothing.
type Metrics struct {
	Submitted  prometheus.Counter
	Finished   *prometheus.CounterVec
	InProgress prometheus.Gauge
	QueueSize  prometheus.Gauge
	Duration   prometheus.Histogram
}

// NewMetrics creates the runner metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "jobs_submitted_total",
			Help:      "Number of extraction jobs submitted.",
		}),
		Finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "jobs_finished_total",
			Help:      "Number of extraction jobs finished, by result.",
		}, []string{ResultLabel}),
		InProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "jobs_in_progress",
			Help:      "Number of extraction jobs currently running.",
		}),
		QueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "queue_size",
			Help:      "Current number of queued extraction jobs.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration of extraction jobs in seconds.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30, 60},
		}),
	}

	for _, c := range []prometheus.Collector{m.Submitted, m.Finished, m.InProgress, m.QueueSize, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) submitted(queued int) {
	if m == nil {
		return
	}
	m.Submitted.Inc()
	m.QueueSize.Set(float64(queued))
}

func (m *Metrics) dequeued(queued int) {
	if m == nil {
		return
	}
	m.QueueSize.Set(float64(queued))
	m.InProgress.Inc()
}

func (m *Metrics) finished(result string, seconds float64) {
	if m == nil {
		return
	}
	m.InProgress.Dec()
	m.Finished.WithLabelValues(result).Inc()
	m.Duration.Observe(seconds)
}
