package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the hub's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	RelaySwitches *prometheus.CounterVec
	Utterances    *prometheus.CounterVec
	Events        *prometheus.CounterVec
	Evictions     prometheus.Counter
	ModeRuns      *prometheus.CounterVec
	Subscribers   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RelaySwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Name:      "relay_switches_total",
			Help:      "Relay state changes applied, by trigger source.",
		}, []string{"source"}),
		Utterances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Name:      "utterances_total",
			Help:      "Voice utterances handled, by outcome.",
		}, []string{"outcome"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Name:      "events_emitted_total",
			Help:      "Events fanned out to subscribers, by type.",
		}, []string{"type"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hub",
			Name:      "subscribers_evicted_total",
			Help:      "Subscribers dropped because their mailbox was full.",
		}),
		ModeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hub",
			Name:      "mode_runs_total",
			Help:      "Mode executions, by kind (activate or deactivate).",
		}, []string{"kind"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hub",
			Name:      "subscribers",
			Help:      "Currently connected event subscribers.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.RelaySwitches, m.Utterances, m.Events, m.Evictions, m.ModeRuns, m.Subscribers)
	}
	return m
}

func (m *Metrics) RelaySwitched(source string) {
	if m == nil {
		return
	}
	m.RelaySwitches.WithLabelValues(source).Inc()
}

func (m *Metrics) Utterance(outcome string) {
	if m == nil {
		return
	}
	m.Utterances.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EventEmitted(eventType string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(eventType).Inc()
}

func (m *Metrics) SubscriberEvicted() {
	if m == nil {
		return
	}
	m.Evictions.Inc()
}

func (m *Metrics) ModeRun(kind string) {
	if m == nil {
		return
	}
	m.ModeRuns.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}
