// Package metrics exports Prometheus metrics for running trees, and serves
// them over HTTP together with a JSON view of tree state.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joeycumines/go-cbt/internal/tree"
)

const namespace = "cbt"

// Collector records node activity. Attach it to a tree with Hooks, and to a
// driver with Observer. It is a prometheus.Collector.
type Collector struct {
	ticks      *prometheus.CounterVec
	states     *prometheus.CounterVec
	rootStates *prometheus.CounterVec
	leafTime   *prometheus.HistogramVec

	mu      sync.Mutex
	started map[*tree.Node]time.Time
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns an unregistered Collector.
func NewCollector() *Collector {
	return &Collector{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_ticks_total",
				Help:      "Ticks delivered to each node, acknowledgments included.",
			},
			[]string{"tree", "node"},
		),
		states: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_states_total",
				Help:      "States published by each node to its parent.",
			},
			[]string{"tree", "node", "state"},
		),
		rootStates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "root_states_total",
				Help:      "Root states read by the driver.",
			},
			[]string{"tree", "state"},
		),
		leafTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "leaf_activation_seconds",
				Help:      "Time from a leaf reporting running to its result.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"tree", "node", "result"},
		),
		started: make(map[*tree.Node]time.Time),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.ticks.Describe(ch)
	c.states.Describe(ch)
	c.rootStates.Describe(ch)
	c.leafTime.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.ticks.Collect(ch)
	c.states.Collect(ch)
	c.rootStates.Collect(ch)
	c.leafTime.Collect(ch)
}

// Hooks returns tree hooks recording under the tree label name.
func (c *Collector) Hooks(name string) tree.Hooks {
	return tree.Hooks{
		OnTick: func(n *tree.Node) {
			c.ticks.WithLabelValues(name, n.Name()).Inc()
		},
		OnState: func(n *tree.Node, s tree.State) {
			c.states.WithLabelValues(name, n.Name(), s.String()).Inc()
			if n.Type().Leaf() {
				c.leafState(name, n, s)
			}
		},
	}
}

func (c *Collector) leafState(name string, n *tree.Node, s tree.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case s == tree.Running:
		c.started[n] = time.Now()
	case s.Terminal():
		if start, ok := c.started[n]; ok {
			delete(c.started, n)
			c.leafTime.WithLabelValues(name, n.Name(), s.String()).Observe(time.Since(start).Seconds())
		}
	}
}

// Observer returns a driver observer counting root states under the tree
// label name.
func (c *Collector) Observer(name string) func(tree.State) {
	return func(s tree.State) {
		c.rootStates.WithLabelValues(name, s.String()).Inc()
	}
}
