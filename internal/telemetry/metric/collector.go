package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClusterSource reports live master state at scrape time.
type ClusterSource interface {
	Uptime() time.Duration
	NodeCount() int
	RingPoints() int
}

// Collector collects master state on every scrape.
type Collector struct {
	source ClusterSource

	uptime     *prometheus.Desc
	nodes      *prometheus.Desc
	ringPoints *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source ClusterSource) *Collector {
	return &Collector{
		source: source,
		uptime: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "master", "uptime_seconds"),
			"Seconds since the master started listening.", nil, nil),
		nodes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "master", "nodes_authenticated"),
			"Authenticated nodes registered on the ring.", nil, nil),
		ringPoints: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ring", "points"),
			"Virtual points on the hash ring.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.uptime
	ch <- c.nodes
	ch <- c.ringPoints
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, c.source.Uptime().Seconds())
	ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(c.source.NodeCount()))
	ch <- prometheus.MustNewConstMetric(c.ringPoints, prometheus.GaugeValue, float64(c.source.RingPoints()))
}
