// Package roommetrics exposes the Prometheus collectors a chatroom
// instance updates from its room actors and connection lifecycle.
package roommetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the instance host's Prometheus collectors.
type Registry struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	ConnectionsActive   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	ConnectionsRejected prometheus.Counter
	MessagesBroadcast   prometheus.Counter
	ChatsPersisted      prometheus.Counter
	ChatsPersistFailed  prometheus.Counter
	RoomsCreated        prometheus.Gauge
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registerer: reg,
		gatherer:   reg,
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "searchbuddy_instance_connections_active",
			Help: "Number of currently joined WebSocket connections across all rooms on this instance.",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_instance_connections_total",
			Help: "Total WebSocket connections accepted by this instance.",
		}),
		ConnectionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_instance_connections_rejected_total",
			Help: "Total WebSocket upgrades rejected by admission control.",
		}),
		MessagesBroadcast: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_instance_messages_broadcast_total",
			Help: "Total room broadcast rounds completed.",
		}),
		ChatsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_instance_chats_persisted_total",
			Help: "Total chat messages successfully inserted into the store.",
		}),
		ChatsPersistFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_instance_chats_persist_failed_total",
			Help: "Total chat inserts that failed (message still broadcast).",
		}),
		RoomsCreated: factory.NewGauge(prometheus.GaugeOpts{
			Name: "searchbuddy_instance_rooms_created",
			Help: "Number of rooms materialized on this instance since boot.",
		}),
	}
}

// Handler exposes this registry's metrics for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// ConnectionOpened and ConnectionClosed satisfy internal/room.Metrics.
func (r *Registry) ConnectionOpened(int32) { r.ConnectionsActive.Inc() }
func (r *Registry) ConnectionClosed(int32) { r.ConnectionsActive.Dec() }
func (r *Registry) MessageBroadcast(int32) { r.MessagesBroadcast.Inc() }
