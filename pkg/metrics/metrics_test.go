package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/logger"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics/metricsTypes"
)

type countingClient struct {
	incr, gauge, timing, flush int
	fail                       bool
}

func (c *countingClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	c.incr++
	if c.fail {
		return fmt.Errorf("incr failed")
	}
	return nil
}

func (c *countingClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	c.gauge++
	return nil
}

func (c *countingClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	c.timing++
	return nil
}

func (c *countingClient) Flush() {
	c.flush++
}

func Test_MetricsSink(t *testing.T) {
	t.Run("Fans out to every client", func(t *testing.T) {
		a := &countingClient{}
		b := &countingClient{}
		sink, err := NewMetricsSink(&MetricsSinkConfig{}, []metricsTypes.IMetricsClient{a, b})
		assert.Nil(t, err)

		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_HttpRequest, nil, 1))
		assert.Nil(t, sink.Gauge(metricsTypes.Metric_Gauge_SimulationRunning, 1, nil))
		assert.Nil(t, sink.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Second, nil))
		sink.Flush()

		for _, c := range []*countingClient{a, b} {
			assert.Equal(t, 1, c.incr)
			assert.Equal(t, 1, c.gauge)
			assert.Equal(t, 1, c.timing)
			assert.Equal(t, 1, c.flush)
		}
	})

	t.Run("Reports a failing client after calling the rest", func(t *testing.T) {
		a := &countingClient{fail: true}
		b := &countingClient{}
		sink, _ := NewMetricsSink(&MetricsSinkConfig{}, []metricsTypes.IMetricsClient{a, b})

		assert.NotNil(t, sink.Incr(metricsTypes.Metric_Incr_HttpRequest, nil, 1))
		assert.Equal(t, 1, b.incr)
	})

	t.Run("Nil and empty sinks are no-ops", func(t *testing.T) {
		var nilSink *MetricsSink
		assert.Nil(t, nilSink.Incr(metricsTypes.Metric_Incr_HttpRequest, nil, 1))
		nilSink.Flush()

		empty, _ := NewMetricsSink(&MetricsSinkConfig{}, nil)
		assert.Nil(t, empty.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Second, nil))
	})
}

func Test_InitMetricsSinksFromConfig(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)

	t.Run("Creates no clients by default", func(t *testing.T) {
		mc, err := InitMetricsSinksFromConfig(&config.Config{}, l)
		assert.Nil(t, err)
		assert.Len(t, mc.Clients, 0)
		assert.Nil(t, mc.Prometheus)
	})

	t.Run("Creates a prometheus client", func(t *testing.T) {
		cfg := &config.Config{PrometheusConfig: config.PrometheusConfig{Enabled: true, Port: 2112}}
		mc, err := InitMetricsSinksFromConfig(cfg, l)
		assert.Nil(t, err)
		assert.Len(t, mc.Clients, 1)
		assert.NotNil(t, mc.Prometheus)
	})
}
