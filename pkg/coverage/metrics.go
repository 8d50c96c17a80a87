package coverage

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const metricsNamespace = "pcov"

// Collector exposes per-file path coverage as Prometheus metrics. Values are
// read from the Data on every scrape.
type Collector struct {
	data *Data

	totalPaths   *prometheus.Desc
	coveredPaths *prometheus.Desc
	executions   *prometheus.Desc
	methods      *prometheus.Desc
}

// NewCollector creates a collector over d. Register it with a
// prometheus.Registerer to expose it.
func NewCollector(d *Data) *Collector {
	labels := []string{"file"}
	return &Collector{
		data: d,
		totalPaths: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "file", "paths_total"),
			"Number of reported paths in the file",
			labels, nil,
		),
		coveredPaths: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "file", "paths_covered"),
			"Number of reported paths executed at least once",
			labels, nil,
		),
		executions: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "file", "path_executions_total"),
			"Completed passes attributed to a reported path",
			labels, nil,
		),
		methods: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "file", "methods"),
			"Number of methods with path coverage in the file",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalPaths
	ch <- c.coveredPaths
	ch <- c.executions
	ch <- c.methods
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, fd := range c.data.Files() {
		var executions int64
		for _, m := range fd.Paths.Methods() {
			executions += m.ExecutionCount()
		}

		ch <- prometheus.MustNewConstMetric(c.totalPaths, prometheus.GaugeValue, float64(fd.Paths.TotalItems()), fd.Path)
		ch <- prometheus.MustNewConstMetric(c.coveredPaths, prometheus.GaugeValue, float64(fd.Paths.CoveredItems()), fd.Path)
		ch <- prometheus.MustNewConstMetric(c.executions, prometheus.CounterValue, float64(executions), fd.Path)
		ch <- prometheus.MustNewConstMetric(c.methods, prometheus.GaugeValue, float64(fd.Paths.Len()), fd.Path)
	}
}

// WriteMetrics renders the collector's metrics for d in the Prometheus text
// exposition format.
func WriteMetrics(w io.Writer, d *Data) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(d)); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}

	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
