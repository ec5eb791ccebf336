package livexpr

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes the resident node and handle counts of an Observer as
// Prometheus gauges.
type Collector struct {
	obs     *Observer
	nodes   *prometheus.Desc
	handles *prometheus.Desc
}

// NewCollector returns a Collector for o, ready to be registered.
func NewCollector(o *Observer) *Collector {
	return &Collector{
		obs: o,
		nodes: prometheus.NewDesc(
			"livexpr_cached_nodes",
			"Number of resident shared evaluation nodes",
			[]string{"kind"}, nil,
		),
		handles: prometheus.NewDesc(
			"livexpr_live_handles",
			"Number of resident observation handles",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.nodes
	ch <- c.handles
}

// Collect implements prometheus.Collector. Every kind that can hold nodes
// is reported, empty ones as zero.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for k, p := range c.obs.partitions {
		ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(p.Len()), k.String())
	}
	ch <- prometheus.MustNewConstMetric(c.handles, prometheus.GaugeValue, float64(c.obs.LiveHandles()))
}
