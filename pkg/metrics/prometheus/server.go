package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type PrometheusServerConfig struct {
	Port int
}

// PrometheusServer exposes a registry on /metrics.
type PrometheusServer struct {
	config   *PrometheusServerConfig
	logger   *zap.Logger
	registry *prometheus.Registry
	server   *http.Server
}

func NewPrometheusServer(config *PrometheusServerConfig, registry *prometheus.Registry, l *zap.Logger) *PrometheusServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &PrometheusServer{
		config:   config,
		logger:   l,
		registry: registry,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background until a value arrives on stop.
func (ps *PrometheusServer) Start(stop <-chan bool) error {
	go func() {
		ps.logger.Sugar().Infow("Starting prometheus server", zap.Int("port", ps.config.Port))
		if err := ps.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ps.logger.Sugar().Errorw("Prometheus server failed", zap.Error(err))
		}
	}()
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ps.server.Shutdown(ctx); err != nil {
			ps.logger.Sugar().Errorw("Failed to shutdown prometheus server", zap.Error(err))
		}
	}()
	return nil
}

// Handler returns the /metrics mux, mainly for tests.
func (ps *PrometheusServer) Handler() http.Handler {
	return ps.server.Handler
}
