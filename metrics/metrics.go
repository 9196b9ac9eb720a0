// Package metrics exposes Prometheus instrumentation for the simulation
// engine: tick cadence, optimizer solve latency, active disruptions, and
// stranded buses, on a private registry so a host process's own metrics
// are never shadowed.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the simulation's Prometheus collectors.
type Registry struct {
	reg *prometheus.Registry

	Ticks             prometheus.Counter
	SolveCount        prometheus.Counter
	SolveSeconds      prometheus.Histogram
	ActiveDisruptions prometheus.Gauge
	StrandedBuses     prometheus.Gauge
}

// New constructs a Registry with every collector registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "efleetsim_ticks_total",
			Help: "Number of simulation ticks processed.",
		}),
		SolveCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "efleetsim_optimizer_solves_total",
			Help: "Number of rolling-horizon optimizer solves attempted.",
		}),
		SolveSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "efleetsim_optimizer_solve_seconds",
			Help:    "Wall-clock time spent per optimizer solve.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveDisruptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "efleetsim_active_disruptions",
			Help: "Number of currently active disruptions.",
		}),
		StrandedBuses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "efleetsim_stranded_buses",
			Help: "Number of buses currently in the stranded state.",
		}),
	}
	reg.MustRegister(r.Ticks, r.SolveCount, r.SolveSeconds, r.ActiveDisruptions, r.StrandedBuses)
	return r
}

// Handler returns an http.Handler serving this registry's metrics in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
