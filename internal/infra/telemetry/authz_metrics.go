package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AuthzMetrics counts authorization decisions by check kind, permission
// source and outcome.
type AuthzMetrics struct {
	Decisions *prometheus.CounterVec
}

// NewAuthzMetrics registers rbac_authz_decisions_total with reg, reusing an
// existing collector when one is already registered.
func NewAuthzMetrics(reg prometheus.Registerer) (*AuthzMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rbac",
		Name:      "authz_decisions_total",
		Help:      "Authorization decisions partitioned by check, permission source, and result.",
	}, []string{"check", "source", "result"})

	if err := reg.Register(decisions); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register authz decisions collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing authz collector has unexpected type %T", already.ExistingCollector)
		}
		decisions = existing
	}

	return &AuthzMetrics{Decisions: decisions}, nil
}

// RecordDecision increments the decision counter.
func (m *AuthzMetrics) RecordDecision(check, source, outcome string) {
	if m == nil || m.Decisions == nil {
		return
	}
	m.Decisions.WithLabelValues(check, source, outcome).Inc()
}
