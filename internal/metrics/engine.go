package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type EngineMetrics struct {
	reads          *prometheus.CounterVec
	refreshDeduped *prometheus.CounterVec
	writes         *prometheus.CounterVec
	settled        *prometheus.CounterVec
	sessionOpen    prometheus.Gauge
}

var (
	engineOnce     sync.Once
	engineRegistry *EngineMetrics
)

func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			reads: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "nexuslend_ledger_reads_total",
				Help: "Ledger reads issued by the state mirror, by read kind and outcome.",
			}, []string{"kind", "outcome"}),
			refreshDeduped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "nexuslend_refresh_deduplicated_total",
				Help: "Refresh requests collapsed into an already in-flight read, by read kind.",
			}, []string{"kind"}),
			writes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "nexuslend_write_phase_total",
				Help: "Write lifecycle transitions, by write kind and phase entered.",
			}, []string{"kind", "phase"}),
			settled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "nexuslend_operations_settled_total",
				Help: "Operation requests that reached a terminal state, by outcome.",
			}, []string{"outcome"}),
			sessionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "nexuslend_session_open",
				Help: "1 while an operation session is open.",
			}),
		}
		prometheus.MustRegister(
			engineRegistry.reads,
			engineRegistry.refreshDeduped,
			engineRegistry.writes,
			engineRegistry.settled,
			engineRegistry.sessionOpen,
		)
	})
	return engineRegistry
}

func (m *EngineMetrics) ObserveRead(kind, outcome string) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(orUnknown(kind), orUnknown(outcome)).Inc()
}

func (m *EngineMetrics) ObserveRefreshDeduplicated(kind string) {
	if m == nil {
		return
	}
	m.refreshDeduped.WithLabelValues(orUnknown(kind)).Inc()
}

func (m *EngineMetrics) ObserveWritePhase(kind, phase string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(orUnknown(kind), orUnknown(phase)).Inc()
}

func (m *EngineMetrics) ObserveSettled(outcome string) {
	if m == nil {
		return
	}
	m.settled.WithLabelValues(orUnknown(outcome)).Inc()
}

func (m *EngineMetrics) SetSessionOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.sessionOpen.Set(1)
		return
	}
	m.sessionOpen.Set(0)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
