package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/logger"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/shutdown"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/utils"
	"go.uber.org/zap"
)

const simulationAdminFlag = "admin-address"

var simulationCmd = &cobra.Command{
	Use:   "simulation",
	Short: "Manage a local simulation chain",
}

var simulationStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a local node, deploy the game and keep it running until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		ctx := context.Background()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		admin, err := utils.ParseAddress(viper.GetString(config.KebabToSnakeCase(simulationAdminFlag)))
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", simulationAdminFlag, err)
		}

		svc, err := buildServices(cfg, l)
		if err != nil {
			return err
		}
		defer svc.Close()

		controller, err := svc.newController(cfg, l)
		if err != nil {
			return err
		}

		records, err := controller.StartSimulation(ctx, admin)
		if err != nil {
			return err
		}
		if err := printJson(records); err != nil {
			return err
		}

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Infow("Stopping simulation", zap.String("admin", admin.Hex()))
			controller.KillSimulation(ctx)
		}, cfg.SimulationConfig.KillTimeout*2+time.Second*5, l)
		return nil
	},
}

var simulationKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Terminate stale local simulation nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		ctx := context.Background()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		svc, err := buildServices(cfg, l)
		if err != nil {
			return err
		}
		defer svc.Close()

		controller, err := svc.newController(cfg, l)
		if err != nil {
			return err
		}

		return printJson(controller.KillSimulation(ctx))
	},
}
