package metrics

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"nftmarket/core/events"
)

type MarketMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	conflicts  *prometheus.CounterVec
	volume     *prometheus.CounterVec
	published  *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the lazily registered market metrics.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "dispatcher",
				Name:      "operations_total",
				Help:      "Market operations segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftmarket",
				Subsystem: "dispatcher",
				Name:      "operation_duration_seconds",
				Help:      "Latency of market operations including commit retries.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "dispatcher",
				Name:      "commit_conflicts_total",
				Help:      "Optimistic commit conflicts that forced re-execution.",
			}, []string{"op"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "settlement",
				Name:      "volume_total",
				Help:      "Currency moved by committed settlements segmented by leg.",
			}, []string{"leg"}),
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Committed events published segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			marketRegistry.operations,
			marketRegistry.latency,
			marketRegistry.conflicts,
			marketRegistry.volume,
			marketRegistry.published,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveOperation(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(seconds)
}

func (m *MarketMetrics) ObserveConflict(op string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(op).Inc()
}

func (m *MarketMetrics) addVolume(leg, raw string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return
	}
	m.volume.WithLabelValues(leg).Add(v)
}

// Emit implements events.Emitter so the registry can subscribe to the
// committed event feed.
func (m *MarketMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	rendered := events.Render(evt)
	m.published.WithLabelValues(rendered.Type).Inc()
	for _, leg := range []string{"fee", "royalty", "proceeds", "refund"} {
		if raw, ok := rendered.Attributes[leg]; ok {
			m.addVolume(leg, raw)
		}
	}
}
