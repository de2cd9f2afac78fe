package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tankgame-sidecar",
	Short: "The TankGame sidecar streams game events, runs local simulations and tracks epochs",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.EthereumRpcUrl, "", `e.g. "http://<hostname>:8545" (default "http://0.0.0.0:8545")`)
	rootCmd.PersistentFlags().Duration(config.EthereumRpcRequestTimeout, 0, `Timeout of a single JSON-RPC request (default 30s)`)

	rootCmd.PersistentFlags().String(config.ContractName, "", `Name of the game contract in deployment output (default "TankGame")`)
	rootCmd.PersistentFlags().String(config.ContractAbiArtifactPath, "", `Path to the forge artifact of the game contract (default "../contracts/out/TankGame.sol/TankGame.json")`)
	rootCmd.PersistentFlags().String(config.ContractAbiMinVersion, "", `Minimum solc version the artifact must be compiled with, e.g. "v0.8.19"`)
	rootCmd.PersistentFlags().String(config.ContractDeploymentsFile, "", `YAML file with additional chain id -> contract address entries`)

	rootCmd.PersistentFlags().String(config.SimulationRpcUrl, "", `RPC URL of the local simulation node (default "http://0.0.0.0:8545")`)
	rootCmd.PersistentFlags().String(config.SimulationNodeBinary, "", `Local node executable (default "anvil")`)
	rootCmd.PersistentFlags().String(config.SimulationNodeArgs, "", `Comma separated node arguments (default "--host,0.0.0.0,--port,8545")`)
	rootCmd.PersistentFlags().String(config.SimulationNodeSignature, "", `Executable name used to find stale node processes (default "anvil")`)
	rootCmd.PersistentFlags().String(config.SimulationContractsDir, "", `Directory of the contracts project (default "../contracts")`)
	rootCmd.PersistentFlags().String(config.SimulationDeployBinary, "", `Deploy executable (default "forge")`)
	rootCmd.PersistentFlags().String(config.SimulationDeployScript, "", `Deploy script relative to the contracts directory (default "script/TankGameDeployerSim.s.sol")`)
	rootCmd.PersistentFlags().String(config.SimulationPrivateKey, "", `Deployer private key (default: anvil dev account #0)`)
	rootCmd.PersistentFlags().Duration(config.SimulationReadyTimeout, 0, `How long to wait for the node to answer (default 15s)`)
	rootCmd.PersistentFlags().Duration(config.SimulationDeployTimeout, 0, `How long the deploy script may run (default 2m)`)
	rootCmd.PersistentFlags().Duration(config.SimulationKillTimeout, 0, `How long to wait for the node to exit after each signal (default 5s)`)
	rootCmd.PersistentFlags().Bool(config.SimulationStrictOutput, false, `Fail when a deploy output line looks like an address report but cannot be parsed`)
	rootCmd.PersistentFlags().String(config.SimulationAddressSource, "", `Where to read deployed addresses from: "stdout" or "broadcast" (default "stdout")`)

	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 3001, `http rpc port`)
	rootCmd.PersistentFlags().String(config.RpcCorsAllowedOrigins, "", `Comma separated list of allowed CORS origins (default "*")`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Bool(config.DataDogTracerEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogTracerEnv, "", `DataDog environment tag (default "local")`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	// setup sub commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(epochCmd)
	rootCmd.AddCommand(simulationCmd)
	rootCmd.AddCommand(versionCmd)

	simulationCmd.AddCommand(simulationStartCmd)
	simulationCmd.AddCommand(simulationKillCmd)

	// bind any subcommand flags
	logsCmd.PersistentFlags().String(logsFromBlockFlag, "0", `First block to include, as a decimal integer`)
	logsCmd.PersistentFlags().String(outputFormatFlag, outputFormatJson, `Output format: "json" or "csv"`)

	epochCmd.PersistentFlags().String(outputFormatFlag, outputFormatJson, `Output format: "json" or "text"`)

	simulationStartCmd.PersistentFlags().String(simulationAdminFlag, "", `Address that receives admin rights on the deployed game (required)`)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// initCommandFlags binds the flags local to cmd the same way the persistent flags are bound.
func initCommandFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
