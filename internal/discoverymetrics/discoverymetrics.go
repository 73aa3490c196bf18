// Package discoverymetrics exposes the Prometheus collectors the
// discovery service updates from its register/ping/chatroom handlers
// and its lease-reaping janitor.
package discoverymetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	gatherer prometheus.Gatherer

	Registrations    prometheus.Counter
	PingsOk          prometheus.Counter
	PingsExpired     prometheus.Counter
	BindingsCreated  prometheus.Counter
	BindingsResolved prometheus.Counter
	BindingsDangling prometheus.Counter
	InstancesReaped  prometheus.Counter
	ActiveInstances  prometheus.Gauge
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		gatherer: reg,
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_discovery_registrations_total",
			Help: "Total instance registrations accepted.",
		}),
		PingsOk: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_discovery_pings_ok_total",
			Help: "Total heartbeats that found a live lease.",
		}),
		PingsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_discovery_pings_expired_total",
			Help: "Total heartbeats answered NoLongerActive.",
		}),
		BindingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_discovery_bindings_created_total",
			Help: "Total term bindings newly inserted.",
		}),
		BindingsResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_discovery_bindings_resolved_total",
			Help: "Total /chatroom lookups resolved to a sticky, still-active binding.",
		}),
		BindingsDangling: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_discovery_bindings_dangling_total",
			Help: "Total /chatroom lookups whose existing binding pointed at a dead instance.",
		}),
		InstancesReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_discovery_instances_reaped_total",
			Help: "Total expired instance rows removed by the janitor.",
		}),
		ActiveInstances: factory.NewGauge(prometheus.GaugeOpts{
			Name: "searchbuddy_discovery_active_instances",
			Help: "Instances considered active as of the last janitor pass.",
		}),
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
