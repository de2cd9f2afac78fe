// Package metrics fans metric observations out to every configured backend.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics/dogstatsd"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics/metricsTypes"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics/prometheus"
	"go.uber.org/zap"
)

type MetricsSinkConfig struct{}

// MetricsSink forwards every call to all of its clients. A nil or empty sink is a no-op.
type MetricsSink struct {
	config  *MetricsSinkConfig
	clients []metricsTypes.IMetricsClient
}

func NewMetricsSink(cfg *MetricsSinkConfig, clients []metricsTypes.IMetricsClient) (*MetricsSink, error) {
	return &MetricsSink{
		config:  cfg,
		clients: clients,
	}, nil
}

// MetricsClients holds the clients created from the global config. Prometheus is kept
// separately so its registry can be served.
type MetricsClients struct {
	Clients    []metricsTypes.IMetricsClient
	Prometheus *prometheus.PrometheusMetricsClient
}

func InitMetricsSinksFromConfig(cfg *config.Config, l *zap.Logger) (*MetricsClients, error) {
	mc := &MetricsClients{
		Clients: make([]metricsTypes.IMetricsClient, 0),
	}

	if cfg.DataDogConfig.StatsdConfig.Enabled {
		dd, err := dogstatsd.NewDogStatsdMetricsClient(cfg.DataDogConfig.StatsdConfig.Url, l)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create dogstatsd client")
		}
		mc.Clients = append(mc.Clients, dd)
	}

	if cfg.PrometheusConfig.Enabled {
		pmc, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics: metricsTypes.MetricTypes,
		}, l)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create prometheus client")
		}
		mc.Clients = append(mc.Clients, pmc)
		mc.Prometheus = pmc
	}

	return mc, nil
}

func (ms *MetricsSink) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	if ms == nil {
		return nil
	}
	var errs error
	for _, client := range ms.clients {
		if err := client.Incr(name, labels, value); err != nil {
			errs = errors.Wrap(err, name)
		}
	}
	return errs
}

func (ms *MetricsSink) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	if ms == nil {
		return nil
	}
	var errs error
	for _, client := range ms.clients {
		if err := client.Gauge(name, value, labels); err != nil {
			errs = errors.Wrap(err, name)
		}
	}
	return errs
}

func (ms *MetricsSink) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	if ms == nil {
		return nil
	}
	var errs error
	for _, client := range ms.clients {
		if err := client.Timing(name, value, labels); err != nil {
			errs = errors.Wrap(err, name)
		}
	}
	return errs
}

func (ms *MetricsSink) Flush() {
	if ms == nil {
		return
	}
	for _, client := range ms.clients {
		client.Flush()
	}
}
