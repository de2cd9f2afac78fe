package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_HttpRequest        = "rpc.http.request"
	Metric_Incr_EventsSynchronized = "logs.events.synchronized"
	Metric_Incr_SimulationStarted  = "simulation.started"
	Metric_Incr_SimulationKilled   = "simulation.killed"

	Metric_Gauge_SimulationRunning     = "simulation.running"
	Metric_Gauge_SecondsUntilNextEpoch = "epoch.secondsUntilNext"

	Metric_Timing_HttpDuration         = "rpc.http.duration"
	Metric_Timing_LogSyncDuration      = "logs.sync.duration"
	Metric_Timing_SimulationStartup    = "simulation.start.duration"
	Metric_Timing_SimulationDeployment = "simulation.deploy.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name: Metric_Incr_HttpRequest,
			Labels: []string{
				"method",
				"path",
				"status_code",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_EventsSynchronized,
			Labels: []string{
				"chain_id",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_SimulationStarted,
			Labels: []string{
				"status",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_SimulationKilled,
			Labels: []string{
				"stopped",
			},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_SimulationRunning,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_SecondsUntilNextEpoch,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name: Metric_Timing_HttpDuration,
			Labels: []string{
				"method",
				"path",
				"status_code",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_LogSyncDuration,
			Labels: []string{
				"chain_id",
				"hasError",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_SimulationStartup,
			Labels: []string{
				"status",
			},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_SimulationDeployment,
			Labels: []string{
				"addressSource",
			},
		},
	},
}
