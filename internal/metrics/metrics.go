// Package metrics records per-branch latency, token and cost counters.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Branch outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups the client's collectors.
type Metrics struct {
	BranchDuration *prometheus.HistogramVec
	BranchesTotal  *prometheus.CounterVec
	TokensTotal    *prometheus.CounterVec
	CostTotal      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BranchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aiadvent_branch_duration_seconds",
				Help:    "Wall-clock duration of a single completion call.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"mode", "source", "outcome"},
		),
		BranchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiadvent_branches_total",
				Help: "Completion calls settled, by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiadvent_tokens_total",
				Help: "Tokens reported by the service.",
			},
			[]string{"source", "type"},
		),
		CostTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiadvent_cost_usd_total",
				Help: "Estimated spend in USD.",
			},
			[]string{"source"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.BranchDuration, m.BranchesTotal, m.TokensTotal, m.CostTotal)
	}
	return m
}

// Branch is what ObserveBranch needs to know about a settled call.
type Branch struct {
	Mode             string
	Source           string
	Seconds          float64
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	Failed           bool
}

// ObserveBranch records one settled call. It is safe on a nil receiver.
func (m *Metrics) ObserveBranch(b Branch) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if b.Failed {
		outcome = OutcomeError
	}
	m.BranchDuration.WithLabelValues(b.Mode, b.Source, outcome).Observe(b.Seconds)
	m.BranchesTotal.WithLabelValues(b.Mode, outcome).Inc()
	if b.PromptTokens > 0 {
		m.TokensTotal.WithLabelValues(b.Source, "prompt").Add(float64(b.PromptTokens))
	}
	if b.CompletionTokens > 0 {
		m.TokensTotal.WithLabelValues(b.Source, "completion").Add(float64(b.CompletionTokens))
	}
	if b.CostUSD > 0 {
		m.CostTotal.WithLabelValues(b.Source).Add(b.CostUSD)
	}
}

// Router serves /metrics from g and a trivial /healthz.
func Router(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}
