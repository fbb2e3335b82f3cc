package sockhealth

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metric struct {
	description *prometheus.Desc
	supplier    func(s Snapshot, labelValues []string) prometheus.Metric
}

// PromCollector adapts a Monitor to prometheus.Collector, mirroring the
// teacher's pkg/exporter.TCPInfoCollector add/remove-under-one-mutex shape
// but reading Monitor.Poll()'s already-trimmed Snapshot instead of a raw
// TCPInfo struct. It shares monitor's tracked-fd table directly rather than
// keeping a second one.
type PromCollector struct {
	monitor *Monitor
	logger  func(error)
	metrics []metric
}

// NewPromCollector returns a PromCollector reading from monitor.
func NewPromCollector(monitor *Monitor, connectionLabels []string, constLabels prometheus.Labels, errorLoggingCallback func(error)) *PromCollector {
	c := &PromCollector{monitor: monitor, logger: errorLoggingCallback}
	c.addMetrics(connectionLabels, constLabels)
	return c
}

func (c *PromCollector) addMetrics(connectionLabels []string, constLabels prometheus.Labels) {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(name, help, connectionLabels, constLabels)
	}

	retransmits := desc("ticknet_socket_retransmits", "TCP retransmit count observed via TCP_INFO.")
	rttMicros := desc("ticknet_socket_rtt_micros", "Smoothed round-trip time in microseconds.")
	rttVarMicros := desc("ticknet_socket_rtt_var_micros", "Round-trip time variance in microseconds.")
	congestionWindow := desc("ticknet_socket_congestion_window", "TCP congestion window in segments.")

	c.metrics = []metric{
		{description: retransmits, supplier: func(s Snapshot, lv []string) prometheus.Metric {
			return prometheus.MustNewConstMetric(retransmits, prometheus.CounterValue, float64(s.Retransmits), lv...)
		}},
		{description: rttMicros, supplier: func(s Snapshot, lv []string) prometheus.Metric {
			return prometheus.MustNewConstMetric(rttMicros, prometheus.GaugeValue, float64(s.RTTMicros), lv...)
		}},
		{description: rttVarMicros, supplier: func(s Snapshot, lv []string) prometheus.Metric {
			return prometheus.MustNewConstMetric(rttVarMicros, prometheus.GaugeValue, float64(s.RTTVarMicros), lv...)
		}},
		{description: congestionWindow, supplier: func(s Snapshot, lv []string) prometheus.Metric {
			return prometheus.MustNewConstMetric(congestionWindow, prometheus.GaugeValue, float64(s.CongestionWindow), lv...)
		}},
	}
}

// Describe implements prometheus.Collector.
func (c *PromCollector) Describe(descs chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		descs <- m.description
	}
}

// Collect implements prometheus.Collector: poll every tracked fd and emit
// one sample per metric per fd, using whatever label values Track supplied.
func (c *PromCollector) Collect(metrics chan<- prometheus.Metric) {
	snapshots := c.monitor.Poll()
	c.monitor.mu.Lock()
	labels := make(map[int][]string, len(c.monitor.tracked))
	for fd, e := range c.monitor.tracked {
		labels[fd] = e.labels
	}
	c.monitor.mu.Unlock()

	for fd, snap := range snapshots {
		lv := labels[fd]
		for _, m := range c.metrics {
			metrics <- m.supplier(snap, lv)
		}
	}
}

// Track registers fd with the underlying Monitor, forwarding the labels
// Collect will look up during the next poll.
func (c *PromCollector) Track(fd int, labels []string) {
	c.monitor.Track(fd, labels)
}

// Untrack removes fd from the underlying Monitor.
func (c *PromCollector) Untrack(fd int) {
	c.monitor.Untrack(fd)
}
