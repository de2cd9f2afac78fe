package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "TANKGAME"

// Chain ids with a known TankGame deployment.
const (
	ChainId_Mainnet uint64 = 1
	ChainId_Goerli  uint64 = 5
	ChainId_Foundry uint64 = 31337
)

// DefaultDeploymentAddresses is the chain id -> TankGame address table shipped with the
// contracts. The foundry entry is the first CREATE of anvil's dev account #0.
var DefaultDeploymentAddresses = map[uint64]string{
	ChainId_Mainnet: "0x021dbff4a864aa25c51f0ad2cd73266fde66199d",
	ChainId_Goerli:  "0x0a8628a32f0AC3A208B8CEf032B38fF08bB140D7",
	ChainId_Foundry: "0x5fbdb2315678afecb367f032d93f642f64180aa3",
}

// AnvilDevPrivateKey is anvil's deterministic dev account #0. It only holds value on a
// local simulation chain.
const AnvilDevPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type AddressSource string

const (
	AddressSource_Stdout    AddressSource = "stdout"
	AddressSource_Broadcast AddressSource = "broadcast"
)

type Config struct {
	Debug             bool
	EthereumRpcConfig EthereumRpcConfig
	ContractConfig    ContractConfig
	SimulationConfig  SimulationConfig
	RpcConfig         RpcConfig
	PrometheusConfig  PrometheusConfig
	DataDogConfig     DataDogConfig
}

type EthereumRpcConfig struct {
	RpcUrl         string
	RequestTimeout time.Duration
}

type ContractConfig struct {
	Name            string
	AbiArtifactPath string
	AbiMinVersion   string
	DeploymentsFile string
}

type SimulationConfig struct {
	RpcUrl          string
	NodeBinary      string
	NodeArgs        []string
	NodeSignature   string
	ContractsDir    string
	DeployBinary    string
	DeployScript    string
	PrivateKey      string
	ReadyTimeout    time.Duration
	DeployTimeout   time.Duration
	KillTimeout     time.Duration
	StrictOutput    bool
	AddressSource   AddressSource
	BroadcastChain  uint64
	AdminAddressEnv string
}

type RpcConfig struct {
	HttpPort           int
	CorsAllowedOrigins []string
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type StatsdConfig struct {
	Enabled bool
	Url     string
}

type TracerConfig struct {
	Enabled bool
	Env     string
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
	TracerConfig TracerConfig
}

var (
	Debug = "debug"

	EthereumRpcUrl            = "ethereum.rpc-url"
	EthereumRpcRequestTimeout = "ethereum.request-timeout"

	ContractName            = "contract.name"
	ContractAbiArtifactPath = "contract.abi-artifact"
	ContractAbiMinVersion   = "contract.abi-min-version"
	ContractDeploymentsFile = "contract.deployments-file"

	SimulationRpcUrl        = "simulation.rpc-url"
	SimulationNodeBinary    = "simulation.node-binary"
	SimulationNodeArgs      = "simulation.node-args"
	SimulationNodeSignature = "simulation.node-signature"
	SimulationContractsDir  = "simulation.contracts-dir"
	SimulationDeployBinary  = "simulation.deploy-binary"
	SimulationDeployScript  = "simulation.deploy-script"
	SimulationPrivateKey    = "simulation.private-key"
	SimulationReadyTimeout  = "simulation.ready-timeout"
	SimulationDeployTimeout = "simulation.deploy-timeout"
	SimulationKillTimeout   = "simulation.kill-timeout"
	SimulationStrictOutput  = "simulation.strict-output"
	SimulationAddressSource = "simulation.address-source"

	RpcHttpPort           = "rpc.http-port"
	RpcCorsAllowedOrigins = "rpc.cors-allowed-origins"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	DataDogStatsdEnabled = "datadog.statsd.enabled"
	DataDogStatsdUrl     = "datadog.statsd.url"
	DataDogTracerEnabled = "datadog.tracer.enabled"
	DataDogTracerEnv     = "datadog.tracer.env"
)

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		EthereumRpcConfig: EthereumRpcConfig{
			RpcUrl:         StringWithDefault(viper.GetString(normalizeFlagName(EthereumRpcUrl)), "http://0.0.0.0:8545"),
			RequestTimeout: DurationWithDefault(viper.GetDuration(normalizeFlagName(EthereumRpcRequestTimeout)), 30*time.Second),
		},

		ContractConfig: ContractConfig{
			Name:            StringWithDefault(viper.GetString(normalizeFlagName(ContractName)), "TankGame"),
			AbiArtifactPath: StringWithDefault(viper.GetString(normalizeFlagName(ContractAbiArtifactPath)), "../contracts/out/TankGame.sol/TankGame.json"),
			AbiMinVersion:   viper.GetString(normalizeFlagName(ContractAbiMinVersion)),
			DeploymentsFile: viper.GetString(normalizeFlagName(ContractDeploymentsFile)),
		},

		SimulationConfig: SimulationConfig{
			RpcUrl:          StringWithDefault(viper.GetString(normalizeFlagName(SimulationRpcUrl)), "http://0.0.0.0:8545"),
			NodeBinary:      StringWithDefault(viper.GetString(normalizeFlagName(SimulationNodeBinary)), "anvil"),
			NodeArgs:        ListWithDefault(parseStringAsList(viper.GetString(normalizeFlagName(SimulationNodeArgs))), []string{"--host", "0.0.0.0", "--port", "8545"}),
			NodeSignature:   StringWithDefault(viper.GetString(normalizeFlagName(SimulationNodeSignature)), "anvil"),
			ContractsDir:    StringWithDefault(viper.GetString(normalizeFlagName(SimulationContractsDir)), "../contracts"),
			DeployBinary:    StringWithDefault(viper.GetString(normalizeFlagName(SimulationDeployBinary)), "forge"),
			DeployScript:    StringWithDefault(viper.GetString(normalizeFlagName(SimulationDeployScript)), "script/TankGameDeployerSim.s.sol"),
			PrivateKey:      StringWithDefault(viper.GetString(normalizeFlagName(SimulationPrivateKey)), AnvilDevPrivateKey),
			ReadyTimeout:    DurationWithDefault(viper.GetDuration(normalizeFlagName(SimulationReadyTimeout)), 15*time.Second),
			DeployTimeout:   DurationWithDefault(viper.GetDuration(normalizeFlagName(SimulationDeployTimeout)), 2*time.Minute),
			KillTimeout:     DurationWithDefault(viper.GetDuration(normalizeFlagName(SimulationKillTimeout)), 5*time.Second),
			StrictOutput:    viper.GetBool(normalizeFlagName(SimulationStrictOutput)),
			AddressSource:   AddressSource(StringWithDefault(viper.GetString(normalizeFlagName(SimulationAddressSource)), string(AddressSource_Stdout))),
			BroadcastChain:  ChainId_Foundry,
			AdminAddressEnv: "ADMIN_ADDRESS",
		},

		RpcConfig: RpcConfig{
			HttpPort:           IntWithDefault(viper.GetInt(normalizeFlagName(RpcHttpPort)), 3001),
			CorsAllowedOrigins: ListWithDefault(parseStringAsList(viper.GetString(normalizeFlagName(RpcCorsAllowedOrigins))), []string{"*"}),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    IntWithDefault(viper.GetInt(normalizeFlagName(PrometheusPort)), 2112),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled: viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:     viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
			},
			TracerConfig: TracerConfig{
				Enabled: viper.GetBool(normalizeFlagName(DataDogTracerEnabled)),
				Env:     StringWithDefault(viper.GetString(normalizeFlagName(DataDogTracerEnv)), "local"),
			},
		},
	}
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

func StringWithDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func IntWithDefault(value, defaultValue int) int {
	if value == 0 {
		return defaultValue
	}
	return value
}

func DurationWithDefault(value, defaultValue time.Duration) time.Duration {
	if value <= 0 {
		return defaultValue
	}
	return value
}

func ListWithDefault(value, defaultValue []string) []string {
	if len(value) == 0 {
		return defaultValue
	}
	return value
}

func parseStringAsList(envVar string) []string {
	if envVar == "" {
		return []string{}
	}
	// split on commas
	stringList := strings.Split(envVar, ",")

	for i, s := range stringList {
		stringList[i] = strings.TrimSpace(s)
	}
	l := make([]string, 0)
	for _, s := range stringList {
		if s != "" {
			l = append(l, s)
		}
	}
	return l
}
