package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/logger"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/epochTiming"
)

var epochCmd = &cobra.Command{
	Use:   "epoch",
	Short: "Print the time left in the current game epoch",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		ctx := context.Background()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		format := viper.GetString(config.KebabToSnakeCase(outputFormatFlag))
		if format != outputFormatJson && format != outputFormatText {
			return fmt.Errorf("unsupported output format '%s'", format)
		}

		svc, err := buildServices(cfg, l)
		if err != nil {
			return err
		}
		defer svc.Close()

		state, err := svc.epochReader.ReadEpochState(ctx)
		if err != nil {
			return fmt.Errorf("failed to read epoch state: %w", err)
		}
		countdown := epochTiming.Compute(*state, time.Now())

		if format == outputFormatText {
			sign := ""
			if countdown.Overdue {
				sign = "-"
			}
			fmt.Printf("epoch %s ends in %s%s\n", countdown.CurrentEpoch.String(), sign, countdown.Formatted)
			return nil
		}
		return printJson(countdown)
	},
}
