package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the relay. All methods are nil-safe so tests and dev
// wiring can pass a nil *Metrics.
type Metrics struct {
	connectedSessions prometheus.Gauge
	onlineUsers       prometheus.Gauge

	messagesRelayed        prometheus.Counter
	messagesEchoed         prometheus.Counter
	messagesDroppedOffline prometheus.Counter
}

// NewMetrics registers the relay collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connectedSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "pinggo_realtime_connected_sessions",
			Help: "Currently open websocket sessions, identified or not.",
		}),
		onlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Name: "pinggo_realtime_online_users",
			Help: "Users currently present in the presence registry.",
		}),
		messagesRelayed: f.NewCounter(prometheus.CounterOpts{
			Name: "pinggo_realtime_messages_relayed_total",
			Help: "Direct messages forwarded to an online recipient session.",
		}),
		messagesEchoed: f.NewCounter(prometheus.CounterOpts{
			Name: "pinggo_realtime_messages_echoed_total",
			Help: "Direct messages echoed back to the sender session.",
		}),
		messagesDroppedOffline: f.NewCounter(prometheus.CounterOpts{
			Name: "pinggo_realtime_messages_dropped_offline_total",
			Help: "Direct messages dropped because the recipient was offline.",
		}),
	}
}

func (m *Metrics) setConnectedSessions(n int) {
	if m == nil {
		return
	}
	m.connectedSessions.Set(float64(n))
}

func (m *Metrics) setOnlineUsers(n int) {
	if m == nil {
		return
	}
	m.onlineUsers.Set(float64(n))
}

func (m *Metrics) incRelayed() {
	if m == nil {
		return
	}
	m.messagesRelayed.Inc()
}

func (m *Metrics) incEchoed() {
	if m == nil {
		return
	}
	m.messagesEchoed.Inc()
}

func (m *Metrics) incDroppedOffline() {
	if m == nil {
		return
	}
	m.messagesDroppedOffline.Inc()
}
