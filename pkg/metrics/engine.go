package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records basket and payment activity counters.
type EngineMetrics struct {
	mutations          *prometheus.CounterVec
	conflictsRecovered prometheus.Counter
	conflictsSurfaced  prometheus.Counter
	authorizations     *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_mutations_total",
		Help: "Basket mutations issued against the commerce API.",
	}, []string{"operation", "outcome"})
	conflictsRecovered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "basket_conflicts_recovered_total",
		Help: "Stale-etag conflicts recovered by the single resync-and-retry.",
	})
	conflictsSurfaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "basket_conflicts_surfaced_total",
		Help: "Stale-etag conflicts that still failed after the retry.",
	})
	authorizations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_authorizations_total",
		Help: "Payment authorization attempts by tender kind and outcome.",
	}, []string{"tender", "outcome"})
	reg.MustRegister(mutations, conflictsRecovered, conflictsSurfaced, authorizations)
	return &EngineMetrics{
		mutations:          mutations,
		conflictsRecovered: conflictsRecovered,
		conflictsSurfaced:  conflictsSurfaced,
		authorizations:     authorizations,
	}
}

// ObserveMutation counts one basket mutation with its outcome.
func (m *EngineMetrics) ObserveMutation(operation string, err error) {
	if m == nil || m.mutations == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.mutations.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}

// IncConflictRecovered counts a conflict the retry wrapper absorbed.
func (m *EngineMetrics) IncConflictRecovered() {
	if m == nil || m.conflictsRecovered == nil {
		return
	}
	m.conflictsRecovered.Inc()
}

// IncConflictSurfaced counts a conflict that escaped to the caller.
func (m *EngineMetrics) IncConflictSurfaced() {
	if m == nil || m.conflictsSurfaced == nil {
		return
	}
	m.conflictsSurfaced.Inc()
}

// ObserveAuthorization counts one payment authorization attempt.
func (m *EngineMetrics) ObserveAuthorization(tender string, err error) {
	if m == nil || m.authorizations == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.authorizations.WithLabelValues(normalizeLabel(tender), outcome).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
