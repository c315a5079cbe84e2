package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 汇总中继服务的 Prometheus 指标。
type Metrics struct {
	gatherer prometheus.Gatherer

	Connections    prometheus.Gauge
	Rooms          prometheus.Gauge
	Messages       *prometheus.CounterVec
	ProtocolErrors prometheus.Counter
	DroppedSends   prometheus.Counter
	Evictions      prometheus.Counter
	MirrorDropped  prometheus.Counter
	MirrorFailures *prometheus.CounterVec
}

// knownTypes 之外的消息类型统一记为 unknown，避免标签基数失控。
var knownTypes = map[string]struct{}{
	"create-room": {}, "check-room": {}, "join-room": {}, "leave-room": {},
	"stroke-start": {}, "stroke-update": {}, "stroke-end": {},
	"cursor-move": {}, "cursor-leave": {}, "clear-canvas": {},
	"strokes-saved": {}, "get-room-data": {}, "get-room-info": {}, "ping": {},
}

// New 在给定的 registry 上注册全部指标。测试中传入 prometheus.NewRegistry()。
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		panic("metrics.New: registry cannot be nil")
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "whiteboard", Name: "connections",
			Help: "Number of open websocket connections.",
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "whiteboard", Name: "rooms",
			Help: "Number of rooms in the registry.",
		}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whiteboard", Name: "messages_total",
			Help: "Inbound messages by type.",
		}, []string{"type"}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard", Name: "protocol_errors_total",
			Help: "Inbound messages dropped because they could not be decoded.",
		}),
		DroppedSends: f.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard", Name: "dropped_sends_total",
			Help: "Outbound messages dropped because a connection was closed or saturated.",
		}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard", Name: "room_evictions_total",
			Help: "Rooms evicted after the grace period.",
		}),
		MirrorDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard", Name: "mirror_dropped_total",
			Help: "Mirror events dropped because the queue was full.",
		}),
		MirrorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whiteboard", Name: "mirror_failures_total",
			Help: "Mirror writes that failed, by target.",
		}, []string{"target"}),
	}
}

// ObserveMessage 按类型计数一条入站消息。
func (m *Metrics) ObserveMessage(msgType string) {
	if _, ok := knownTypes[msgType]; !ok {
		msgType = "unknown"
	}
	m.Messages.WithLabelValues(msgType).Inc()
}

// Handler exposes Prometheus metrics at /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
