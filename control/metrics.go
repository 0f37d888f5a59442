// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for endpoints. Counters touched on the submission
// path are resolved at construction so updates are plain atomic adds.

package control

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-rpc/api"
)

// Metrics groups the endpoint collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	submits      prometheus.Counter
	submitErrors *prometheus.CounterVec
	errByCode    map[api.ErrorCode]prometheus.Counter
	admissions   prometheus.Counter
	slotsInUse   prometheus.Gauge
	hookEvents   prometheus.Counter
	sessions     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer, cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	ns := cfg.Namespace
	m := &Metrics{
		submits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "datapath",
			Name:      "submits_total",
			Help:      "Requests accepted for transmission.",
		}),
		submitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "datapath",
			Name:      "submit_errors_total",
			Help:      "Rejected submissions by error code.",
		}, []string{"code"}),
		admissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "datapath",
			Name:      "tx_queue_admissions_total",
			Help:      "Sessions admitted into the transmission queue.",
		}),
		slotsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "datapath",
			Name:      "slots_in_use",
			Help:      "Request slots currently holding a message.",
		}),
		hookEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "session",
			Name:      "hook_events_total",
			Help:      "Establishment records drained from the management hook.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "session",
			Name:      "sessions_active",
			Help:      "Sessions owned by the endpoint.",
		}),
	}
	m.errByCode = map[api.ErrorCode]prometheus.Counter{}
	for _, c := range []api.ErrorCode{
		api.ErrCodeInvalidSessionArg,
		api.ErrCodeInvalidMsgBufferArg,
		api.ErrCodeNoSessionMsgSlots,
	} {
		m.errByCode[c] = m.submitErrors.WithLabelValues(c.String())
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.submits, m.submitErrors, m.admissions, m.slotsInUse, m.hookEvents, m.sessions,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Submitted records one accepted submission.
func (m *Metrics) Submitted() {
	if m == nil {
		return
	}
	m.submits.Inc()
	m.slotsInUse.Inc()
}

// SubmitFailed records a rejected submission.
func (m *Metrics) SubmitFailed(code api.ErrorCode) {
	if m == nil {
		return
	}
	if c, ok := m.errByCode[code]; ok {
		c.Inc()
		return
	}
	m.submitErrors.WithLabelValues(code.String()).Inc()
}

// Admitted records a session entering the transmission queue.
func (m *Metrics) Admitted() {
	if m == nil {
		return
	}
	m.admissions.Inc()
}

// Completed records a slot returning to the free-list.
func (m *Metrics) Completed() {
	if m == nil {
		return
	}
	m.slotsInUse.Dec()
}

// HookEvents adds n drained establishment records.
func (m *Metrics) HookEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.hookEvents.Add(float64(n))
}

// SessionsDelta adjusts the active session gauge.
func (m *Metrics) SessionsDelta(d int) {
	if m == nil {
		return
	}
	m.sessions.Add(float64(d))
}

// SubmitsCounter exposes the submissions counter for inspection.
func (m *Metrics) SubmitsCounter() prometheus.Counter { return m.submits }

// SubmitErrors exposes the rejection counter vector for inspection.
func (m *Metrics) SubmitErrors() *prometheus.CounterVec { return m.submitErrors }

// AdmissionsCounter exposes the queue admission counter for inspection.
func (m *Metrics) AdmissionsCounter() prometheus.Counter { return m.admissions }

// SlotsInUse exposes the slot gauge for inspection.
func (m *Metrics) SlotsInUse() prometheus.Gauge { return m.slotsInUse }

// Sessions exposes the session gauge for inspection.
func (m *Metrics) Sessions() prometheus.Gauge { return m.sessions }
