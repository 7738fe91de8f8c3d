package stats

import (
	"github.com/danielpatrickdp/cag-verifier/internal/router"
	"github.com/prometheus/client_golang/prometheus"
)

// #region collector

// Collector exposes an Aggregator to Prometheus.
type Collector struct {
	agg   *Aggregator
	total *prometheus.Desc
	mean  *prometheus.Desc
}

// NewCollector wraps agg. Register it once per registry.
func NewCollector(agg *Aggregator) *Collector {
	return &Collector{
		agg: agg,
		total: prometheus.NewDesc(
			"cag_verifications_total",
			"Completed verifications by decision.",
			[]string{"decision"}, nil,
		),
		mean: prometheus.NewDesc(
			"cag_processing_ms_mean",
			"Mean verification processing time in milliseconds.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.mean
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.agg.Snapshot()
	for _, d := range router.Terminal() {
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(snap.Counts[d.String()]), d.String())
	}
	ch <- prometheus.MustNewConstMetric(c.mean, prometheus.GaugeValue, snap.MeanProcessingMs)
}

// #endregion collector
