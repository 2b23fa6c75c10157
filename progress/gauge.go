package progress

import (
	"github.com/prometheus/client_golang/prometheus"

	"extract/expression"
)

const (
	MetricsNamespace = "expression"
	ExpressionLabel  = "expression"
)

// Gauge exposes the latest progress and variable count per expression.
type Gauge struct {
	progress  *prometheus.GaugeVec
	variables *prometheus.GaugeVec
}

// NewGauge creates the gauges and registers them with reg.
func NewGauge(reg prometheus.Registerer) (*Gauge, error) {
	g := &Gauge{
		progress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "extraction_progress_percent",
			Help:      "Progress of the latest extraction of an expression in percent.",
		}, []string{ExpressionLabel}),
		variables: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "extracted_variables",
			Help:      "Number of variables reported by the latest completed extraction.",
		}, []string{ExpressionLabel}),
	}

	for _, c := range []prometheus.Collector{g.progress, g.variables} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Gauge) ProgressUpdated(expr string, percent float64) {
	g.progress.WithLabelValues(expr).Set(percent)
}

func (g *Gauge) ProcessCompleted(expr string, variables expression.TokenList) {
	g.variables.WithLabelValues(expr).Set(float64(len(variables)))
}
