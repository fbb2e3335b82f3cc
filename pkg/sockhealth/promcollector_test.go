package sockhealth

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"gotest.tools/v3/assert"
)

func TestPromCollectorDescribesAllMetrics(t *testing.T) {
	m := NewMonitor(nil)
	c := NewPromCollector(m, []string{"id"}, nil, func(error) {})

	descs := make(chan *prometheus.Desc, 16)
	c.Describe(descs)
	close(descs)

	count := 0
	for range descs {
		count++
	}
	assert.Equal(t, count, 4)
}

func TestPromCollectorCollectSkipsUnpollableFd(t *testing.T) {
	m := NewMonitor(nil)
	c := NewPromCollector(m, []string{"id"}, nil, func(error) {})
	c.Track(99999, []string{"client-1"})

	metrics := make(chan prometheus.Metric, 16)
	c.Collect(metrics)
	close(metrics)

	count := 0
	for range metrics {
		count++
	}
	assert.Equal(t, count, 0)
}
