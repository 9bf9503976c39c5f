package mcmc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records sampler activity.
//
// Metrics are registered on the registerer passed to NewMetrics rather than
// the global default, so several samplers (and tests) can each own a set.
type Metrics struct {
	steps      *prometheus.CounterVec
	logProb    prometheus.Histogram
	proposalSz prometheus.Histogram
}

// Step outcomes used as the "outcome" label.
const (
	OutcomeAccepted   = "accepted"
	OutcomeRejected   = "rejected"
	OutcomeImpossible = "impossible"
)

// NewMetrics registers the sampler metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "probgraph_mcmc_steps_total",
			Help: "Metropolis-Hastings steps by outcome",
		}, []string{"outcome"}),
		logProb: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "probgraph_mcmc_log_prob_delta",
			Help:    "Log-probability change proposed per step",
			Buckets: prometheus.LinearBuckets(-20, 2.5, 17),
		}),
		proposalSz: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "probgraph_mcmc_proposal_vertices",
			Help:    "Number of latents changed per proposal",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		}),
	}
}

func (m *Metrics) observe(outcome string, delta float64, size int) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(outcome).Inc()
	if outcome != OutcomeImpossible {
		m.logProb.Observe(delta)
	}
	m.proposalSz.Observe(float64(size))
}
