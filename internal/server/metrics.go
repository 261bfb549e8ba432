package server

import (
	"github.com/cxd309/junction-sim/internal/engine"
	"github.com/cxd309/junction-sim/internal/layout"
	"github.com/cxd309/junction-sim/internal/signal"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "junction"

// Metrics exposes the live simulation on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	sensorCount *prometheus.GaugeVec
	light       *prometheus.GaugeVec
	population  prometheus.Gauge
	simTime     prometheus.Gauge
	density     prometheus.Gauge
	ticks       prometheus.Counter
	spawned     prometheus.Counter
	evicted     prometheus.Counter
	transitions prometheus.Counter
	laneChanges prometheus.Counter

	last engine.Stats
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sensorCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sensor_count",
			Help: "Vehicles inside each street's detection zone.",
		}, []string{"street"}),
		light: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "light",
			Help: "1 for the color each street currently shows, 0 otherwise.",
		}, []string{"street", "color"}),
		population: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "population", Help: "Active vehicles.",
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "simulated_seconds", Help: "Simulated time elapsed.",
		}),
		density: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "density", Help: "Traffic density setting.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_total", Help: "Frames published.",
		}),
		spawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "vehicles_spawned_total", Help: "Vehicles admitted.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "vehicles_evicted_total", Help: "Vehicles that left the road.",
		}),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "signal_transitions_total", Help: "Right-of-way grants.",
		}),
		laneChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "lane_changes_total", Help: "Completed lane changes.",
		}),
	}
	m.registry.MustRegister(
		m.sensorCount, m.light, m.population, m.simTime, m.density,
		m.ticks, m.spawned, m.evicted, m.transitions, m.laneChanges,
	)
	return m
}

// Registry is the registry to serve on /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe records a published frame and the running totals behind it.
func (m *Metrics) Observe(f engine.Frame, stats engine.Stats) {
	m.sensorCount.WithLabelValues(string(layout.Vertical)).Set(float64(f.Counts.Vertical))
	m.sensorCount.WithLabelValues(string(layout.Horizontal)).Set(float64(f.Counts.Horizontal))
	for _, axis := range f.Signal.Axes {
		for _, c := range []signal.Color{signal.Red, signal.Yellow, signal.Green} {
			v := 0.0
			if axis.Color == c {
				v = 1
			}
			m.light.WithLabelValues(string(axis.Street), string(c)).Set(v)
		}
	}
	m.population.Set(float64(len(f.Vehicles)))
	m.simTime.Set(f.Timestamp)
	m.density.Set(float64(f.Density))
	m.ticks.Inc()

	m.spawned.Add(float64(stats.Spawned - m.last.Spawned))
	m.evicted.Add(float64(stats.Evicted - m.last.Evicted))
	m.transitions.Add(float64(stats.Transitions - m.last.Transitions))
	m.laneChanges.Add(float64(stats.LaneChanges - m.last.LaneChanges))
	m.last = stats
}
