package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/logger"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/types/numbers"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/parser"
)

const (
	logsFromBlockFlag = "from-block"
	outputFormatFlag  = "output"

	outputFormatJson = "json"
	outputFormatCsv  = "csv"
	outputFormatText = "text"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print every game event from a block through the latest block",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		ctx := context.Background()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		fromBlock, err := parseFromBlock(viper.GetString(config.KebabToSnakeCase(logsFromBlockFlag)))
		if err != nil {
			return err
		}

		format := viper.GetString(config.KebabToSnakeCase(outputFormatFlag))
		if format != outputFormatJson && format != outputFormatCsv {
			return fmt.Errorf("unsupported output format '%s'", format)
		}

		svc, err := buildServices(cfg, l)
		if err != nil {
			return err
		}
		defer svc.Close()

		events, err := svc.synchronizer.Synchronize(ctx, fromBlock)
		if err != nil {
			return fmt.Errorf("failed to synchronize logs: %w", err)
		}
		if events == nil {
			events = make([]*parser.ContractEvent, 0)
		}

		if format == outputFormatCsv {
			return parser.WriteCsv(events, os.Stdout)
		}
		return printJson(events)
	},
}

func parseFromBlock(value string) (uint64, error) {
	fromBlock, err := numbers.ParseLargeInteger(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", logsFromBlockFlag, err)
	}
	if fromBlock.BigInt().Sign() < 0 || !fromBlock.IsUint64() {
		return 0, fmt.Errorf("invalid --%s: '%s' is not a block number", logsFromBlockFlag, value)
	}
	return fromBlock.Uint64(), nil
}
