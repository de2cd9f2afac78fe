package cmd

import (
	"github.com/pkg/errors"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/clients/ethereum"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/contractAbi"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/deployments"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/epochTiming"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/logSynchronizer"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/simulation"
	"go.uber.org/zap"
)

// services are the components shared by every command.
type services struct {
	client         *ethereum.Client
	nodeClient     *ethereum.Client
	deployments    *deployments.Table
	synchronizer   *logSynchronizer.Synchronizer
	epochReader    *epochTiming.EpochReader
	metricsClients *metrics.MetricsClients
	sink           *metrics.MetricsSink
}

func buildServices(cfg *config.Config, l *zap.Logger) (*services, error) {
	metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup metrics sink")
	}

	sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients.Clients)
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup metrics sink")
	}

	gameAbi, err := contractAbi.LoadArtifact(cfg.ContractConfig.AbiArtifactPath, cfg.ContractConfig.AbiMinVersion, l)
	if err != nil {
		return nil, err
	}

	table, err := deployments.NewTable(config.DefaultDeploymentAddresses, l)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load deployment addresses")
	}
	if cfg.ContractConfig.DeploymentsFile != "" {
		if err := table.LoadFile(cfg.ContractConfig.DeploymentsFile); err != nil {
			return nil, err
		}
	}

	client := ethereum.NewClient(ethereum.ConvertGlobalConfigToEthereumConfig(&cfg.EthereumRpcConfig), l)

	synchronizer := logSynchronizer.NewSynchronizer(client, table, gameAbi, sink, l)

	epochReader, err := epochTiming.NewEpochReader(client, synchronizer, gameAbi, l)
	if err != nil {
		return nil, err
	}

	return &services{
		client:         client,
		deployments:    table,
		synchronizer:   synchronizer,
		epochReader:    epochReader,
		metricsClients: metricsClients,
		sink:           sink,
	}, nil
}

func (s *services) newController(cfg *config.Config, l *zap.Logger) (*simulation.Controller, error) {
	nodeClientConfig := ethereum.ConvertGlobalConfigToEthereumConfig(&cfg.EthereumRpcConfig)
	nodeClientConfig.BaseUrl = cfg.SimulationConfig.RpcUrl
	s.nodeClient = ethereum.NewClient(nodeClientConfig, l)

	return simulation.NewController(
		simulation.ControllerConfigFromConfig(cfg),
		simulation.NewExecRunner(l),
		simulation.NewProcessReaper(l),
		s.nodeClient,
		s.deployments,
		s.sink,
		l,
	)
}

func (s *services) Close() {
	s.client.Close()
	if s.nodeClient != nil {
		s.nodeClient.Close()
	}
	s.sink.Flush()
}
