package cmd

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/logger"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/tracer"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/version"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics/prometheus"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/rpcServer"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/shutdown"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sidecar HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		ctx := context.Background()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}

		l.Sugar().Infow("sidecar version", zap.String("version", version.GetVersion()), zap.String("commit", version.GetCommit()))

		tracer.StartTracer(&cfg.DataDogConfig.TracerConfig)
		defer tracer.StopTracer(&cfg.DataDogConfig.TracerConfig)

		svc, err := buildServices(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup services", zap.Error(err))
		}
		defer svc.Close()

		controller, err := svc.newController(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to create simulation controller", zap.Error(err))
		}

		rpc := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
			HttpPort:           cfg.RpcConfig.HttpPort,
			CorsAllowedOrigins: cfg.RpcConfig.CorsAllowedOrigins,
		}, svc.synchronizer, controller, svc.epochReader, svc.sink, l)

		// RPC channel to notify the RPC server to shutdown gracefully
		rpcChannel := make(chan bool, 1)
		if err := rpc.Start(ctx, rpcChannel); err != nil {
			l.Sugar().Fatalw("Failed to start RPC server", zap.Error(err))
		}

		promChan := make(chan bool, 1)
		if cfg.PrometheusConfig.Enabled && svc.metricsClients.Prometheus != nil {
			pServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, svc.metricsClients.Prometheus.Registry(), l)
			if err := pServer.Start(promChan); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		l.Sugar().Infow("Started sidecar",
			zap.Int("httpPort", cfg.RpcConfig.HttpPort),
			zap.String("rpcUrl", cfg.EthereumRpcConfig.RpcUrl),
		)

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			rpcChannel <- true
			promChan <- true

			closeCtx, cancel := context.WithTimeout(ctx, cfg.SimulationConfig.KillTimeout*2)
			defer cancel()
			controller.Close(closeCtx)
		}, cfg.SimulationConfig.KillTimeout*2+time.Second*5, l)
	},
}
