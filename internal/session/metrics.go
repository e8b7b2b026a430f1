package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcome label values.
const (
	outcomeOK          = "ok"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
)

type metrics struct {
	refreshTotal  *prometheus.CounterVec
	refreshShared prometheus.Counter
	logins        prometheus.Counter
	invalidations prometheus.Counter
}

// newMetrics registers the session counters on reg. A nil reg registers on a
// private throwaway registry so instrumentation calls stay valid.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &metrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passport",
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Refresh attempts by outcome (ok, rejected, unavailable).",
		}, []string{"outcome"}),
		refreshShared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "passport",
			Subsystem: "session",
			Name:      "refresh_shared_total",
			Help:      "Refresh outcomes shared by multiple concurrent callers.",
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "passport",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Successful logins and registrations.",
		}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "passport",
			Subsystem: "session",
			Name:      "invalidations_total",
			Help:      "Full session invalidations (logout or unrecoverable auth failure).",
		}),
	}

	reg.MustRegister(m.refreshTotal, m.refreshShared, m.logins, m.invalidations)
	return m
}
