// Package metrics exports runtime counters for Prometheus and serves them,
// with health and status endpoints, over HTTP.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/presentation"
)

const namespace = "projectmapper"

// Collector records sink and coordinator activity. It satisfies both
// presentation.Observer and coordinator.Observer.
type Collector struct {
	registry *prometheus.Registry

	framesSubmitted *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	sinkState       *prometheus.GaugeVec
	phase           prometheus.Gauge
	triggers        *prometheus.CounterVec
}

// NewCollector registers every metric on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		framesSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_submitted_total",
				Help:      "Frames handed to a presentation surface, labeled by sink id.",
			},
			[]string{"sink"},
		),
		framesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_dropped_total",
				Help:      "Frames discarded because their sink was not running or the submit failed.",
			},
			[]string{"sink"},
		),
		sinkState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sink_state",
				Help:      "Lifecycle state of each sink (0 unopened .. 5 closed).",
			},
			[]string{"sink", "name"},
		),
		phase: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runtime_phase",
			Help:      "Coordinator phase (0 idle .. 4 stopped).",
		}),
		triggers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shutdown_triggers_total",
				Help:      "Shutdown triggers that were acted on, labeled by kind.",
			},
			[]string{"kind"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func sinkLabel(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (c *Collector) SinkState(sinkID uint32, name string, state presentation.State) {
	c.sinkState.WithLabelValues(sinkLabel(sinkID), name).Set(float64(state))
}

func (c *Collector) FrameSubmitted(sinkID uint32) {
	c.framesSubmitted.WithLabelValues(sinkLabel(sinkID)).Inc()
}

func (c *Collector) FrameDropped(sinkID uint32) {
	c.framesDropped.WithLabelValues(sinkLabel(sinkID)).Inc()
}

func (c *Collector) PhaseChanged(p coordinator.Phase) {
	c.phase.Set(float64(p))
}

func (c *Collector) Triggered(kind coordinator.EventKind) {
	c.triggers.WithLabelValues(kind.String()).Inc()
}

var (
	_ presentation.Observer = (*Collector)(nil)
	_ coordinator.Observer  = (*Collector)(nil)
)
