// Package gatewaymetrics exposes the Prometheus collectors the search
// gateway updates while fanning out /chatrooms requests to instances.
package gatewaymetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	gatherer prometheus.Gatherer

	SearchesTotal   prometheus.Counter
	TermsResolved   prometheus.Counter
	TermsUnresolved prometheus.Counter
	FanoutDuration  prometheus.Histogram
	FanoutErrors    prometheus.Counter
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		gatherer: reg,
		SearchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_gateway_searches_total",
			Help: "Total /chatrooms search requests served.",
		}),
		TermsResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_gateway_terms_resolved_total",
			Help: "Total search terms that discovery resolved to a live instance.",
		}),
		TermsUnresolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_gateway_terms_unresolved_total",
			Help: "Total search terms discovery could not place on any active instance.",
		}),
		FanoutDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "searchbuddy_gateway_fanout_duration_seconds",
			Help:    "Time spent fanning a search out to resolved instances.",
			Buckets: prometheus.DefBuckets,
		}),
		FanoutErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "searchbuddy_gateway_fanout_errors_total",
			Help: "Total instance /chatrooms calls that failed during fan-out.",
		}),
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// ObserveFanout records one fan-out round's wall-clock duration.
func (r *Registry) ObserveFanout(d time.Duration) {
	r.FanoutDuration.Observe(d.Seconds())
}
