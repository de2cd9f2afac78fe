package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/logger"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics/metricsTypes"
)

func setup(t *testing.T) *PrometheusMetricsClient {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)

	pmc, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
		Metrics: metricsTypes.MetricTypes,
	}, l)
	assert.Nil(t, err)
	return pmc
}

func Test_UnexpectedLabelsParsing(t *testing.T) {
	pmc := setup(t)

	t.Run("Should return no error for all labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Timing, metricsTypes.Metric_Timing_LogSyncDuration, []metricsTypes.MetricsLabel{
			{Name: "chain_id", Value: "31337"},
			{Name: "hasError", Value: "false"},
		})
		assert.Nil(t, err)
	})
	t.Run("Should return no error for a subset labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Timing, metricsTypes.Metric_Timing_LogSyncDuration, []metricsTypes.MetricsLabel{
			{Name: "chain_id", Value: "31337"},
		})
		assert.Nil(t, err)
	})
	t.Run("Should return an error for unexpected labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Timing, metricsTypes.Metric_Timing_LogSyncDuration, []metricsTypes.MetricsLabel{
			{Name: "chain_id", Value: "31337"},
			{Name: "unexpectedLabel", Value: "unexpectedValue"},
		})
		assert.NotNil(t, err)
	})
	t.Run("Should return an error for unexpected labels when expecting 0 labels", func(t *testing.T) {
		err := pmc.hasUnexpectedLabels(metricsTypes.MetricsType_Gauge, metricsTypes.Metric_Gauge_SimulationRunning, []metricsTypes.MetricsLabel{
			{Name: "status", Value: "ok"},
		})
		assert.NotNil(t, err)
	})
}

func Test_PrometheusServer(t *testing.T) {
	pmc := setup(t)
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	assert.Nil(t, pmc.Incr(metricsTypes.Metric_Incr_SimulationStarted, []metricsTypes.MetricsLabel{
		{Name: "status", Value: "success"},
	}, 1))
	assert.Nil(t, pmc.Gauge(metricsTypes.Metric_Gauge_SimulationRunning, 1, nil))
	assert.Nil(t, pmc.Timing(metricsTypes.Metric_Timing_LogSyncDuration, 15*time.Millisecond, []metricsTypes.MetricsLabel{
		{Name: "chain_id", Value: "31337"},
	}))
	assert.Nil(t, pmc.Incr("not.registered", nil, 1))

	ps := NewPrometheusServer(&PrometheusServerConfig{Port: 0}, pmc.Registry(), l)
	srv := httptest.NewServer(ps.Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	assert.Nil(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	assert.Nil(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `simulation_started{status="success"} 1`)
	assert.Contains(t, string(body), "simulation_running 1")
	assert.Contains(t, string(body), "logs_sync_duration_count")
}
