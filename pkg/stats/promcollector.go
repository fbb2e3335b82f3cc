package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// worldEntry pairs a registered Collector with the labels Prometheus
// attaches to every metric it produces.
type worldEntry struct {
	collector *Collector
	labels    []string
}

// metric is one exported time series, analogous to exporter.info in the
// teacher's pkg/exporter: a Desc plus the function that reads the current
// value off a Collector.
type metric struct {
	description *prometheus.Desc
	supplier    func(c *Collector, labelValues []string) prometheus.Metric
}

// PromCollector adapts one or more physics-world stats.Collectors into the
// prometheus.Collector Describe/Collect interface: a mutex-guarded registry
// of sources keyed by world name.
type PromCollector struct {
	mu      sync.Mutex
	worlds  map[string]worldEntry
	logger  func(error)
	metrics []metric
}

// NewPromCollector returns a PromCollector with the fixed set of
// command/discard/prediction gauges SPEC_FULL.md's telemetry surface
// exposes. constLabels apply to every series (process-wide); worldLabel
// names the per-world label key.
func NewPromCollector(worldLabel string, constLabels prometheus.Labels, errorLoggingCallback func(error)) *PromCollector {
	p := &PromCollector{
		worlds: make(map[string]worldEntry),
		logger: errorLoggingCallback,
	}
	p.addMetrics(worldLabel, constLabels)
	return p
}

func (p *PromCollector) addMetrics(worldLabel string, constLabels prometheus.Labels) {
	labelNames := []string{worldLabel}

	commandBytes := prometheus.NewDesc("ticknet_command_bytes_total", "Bytes of command data accumulated for the current tick.", labelNames, constLabels)
	discarded := prometheus.NewDesc("ticknet_discarded_packets", "Discarded packets in the current tick, saturating at 255.", labelNames, constLabels)
	predictionErrorMax := prometheus.NewDesc("ticknet_prediction_error_max", "Per-field maximum prediction error observed this tick.", labelNames, constLabels)
	snapshotStatWords := prometheus.NewDesc("ticknet_snapshot_stat_words", "Count of snapshot_stats words buffered for the current tick.", labelNames, constLabels)

	p.metrics = append(p.metrics,
		metric{
			description: commandBytes,
			supplier: func(c *Collector, lv []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(commandBytes, prometheus.GaugeValue, float64(c.commandStats), lv...)
			},
		},
		metric{
			description: discarded,
			supplier: func(c *Collector, lv []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(discarded, prometheus.GaugeValue, float64(c.discardedPackets), lv...)
			},
		},
		metric{
			description: predictionErrorMax,
			supplier: func(c *Collector, lv []string) prometheus.Metric {
				var max float32
				for _, v := range c.predictionErrors {
					if v > max {
						max = v
					}
				}
				return prometheus.MustNewConstMetric(predictionErrorMax, prometheus.GaugeValue, float64(max), lv...)
			},
		},
		metric{
			description: snapshotStatWords,
			supplier: func(c *Collector, lv []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(snapshotStatWords, prometheus.GaugeValue, float64(len(c.snapshotStats)), lv...)
			},
		},
	)
}

// Describe implements prometheus.Collector.
func (p *PromCollector) Describe(descs chan<- *prometheus.Desc) {
	for _, m := range p.metrics {
		descs <- m.description
	}
}

// Collect implements prometheus.Collector, reading each registered world's
// Collector under its own lock (Collector.mu). p.mu is held for the whole
// call, so Add and Remove wait until it returns.
func (p *PromCollector) Collect(out chan<- prometheus.Metric) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range p.worlds {
		entry.collector.mu.Lock()
		for _, m := range p.metrics {
			out <- m.supplier(entry.collector, entry.labels)
		}
		entry.collector.mu.Unlock()
	}
}

// Add registers world under PromCollector, marking it as having a metrics
// monitor so stats.Collector keeps recording even without a debug-bridge
// connection (spec.md §4.7's guard: "connected || has_metrics_monitor").
func (p *PromCollector) Add(worldName string, c *Collector, labelValues []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.worlds[worldName] = worldEntry{collector: c, labels: labelValues}
	c.SetMetricsMonitor(true)
}

// Remove unregisters a world, e.g. on its physics group being torn down.
func (p *PromCollector) Remove(worldName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.worlds[worldName]; ok {
		entry.collector.SetMetricsMonitor(false)
		delete(p.worlds, worldName)
	}
}
