// Package simulation owns the local TankGame simulation: an anvil node with the game
// contracts deployed by a forge script.
package simulation

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics/metricsTypes"
	"go.uber.org/zap"
)

// ReadinessProbe blocks until the node answers RPC calls and returns its chain id.
type ReadinessProbe interface {
	WaitForReady(ctx context.Context, pollInterval time.Duration) (*big.Int, error)
}

// AddressPublisher receives the address of a freshly deployed game contract.
type AddressPublisher interface {
	SetOverride(chainId uint64, address common.Address)
	ClearOverride(chainId uint64)
}

type ControllerConfig struct {
	Simulation   config.SimulationConfig
	RpcUrl       string
	ContractName string
	PollInterval time.Duration
}

func ControllerConfigFromConfig(cfg *config.Config) *ControllerConfig {
	return &ControllerConfig{
		Simulation:   cfg.SimulationConfig,
		RpcUrl:       cfg.SimulationConfig.RpcUrl,
		ContractName: cfg.ContractConfig.Name,
		PollInterval: 250 * time.Millisecond,
	}
}

// Controller runs at most one simulation at a time. StartSimulation and KillSimulation
// are serialized; Status never blocks behind them.
type Controller struct {
	config      *ControllerConfig
	runner      ProcessRunner
	reaper      Reaper
	probe       ReadinessProbe
	publisher   AddressPublisher
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger

	deployer common.Address

	// lock is a single slot semaphore so that waiting callers can give up on ctx.
	lock chan struct{}
	node NodeProcess

	mu     sync.RWMutex
	handle *SimulationHandle
}

func NewController(
	cfg *ControllerConfig,
	runner ProcessRunner,
	reaper Reaper,
	probe ReadinessProbe,
	publisher AddressPublisher,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) (*Controller, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Simulation.PrivateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid simulation private key")
	}
	return &Controller{
		config:      cfg,
		runner:      runner,
		reaper:      reaper,
		probe:       probe,
		publisher:   publisher,
		metricsSink: ms,
		logger:      l,
		deployer:    crypto.PubkeyToAddress(key.PublicKey),
		lock:        make(chan struct{}, 1),
	}, nil
}

func (c *Controller) acquire(ctx context.Context) error {
	select {
	case c.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) release() {
	<-c.lock
}

// Status returns the running simulation, or nil.
func (c *Controller) Status() *SimulationHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.handle == nil {
		return nil
	}
	h := *c.handle
	h.Contracts = append([]DeployedContractRecord{}, c.handle.Contracts...)
	return &h
}

func (c *Controller) setHandle(h *SimulationHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = h
}

// StartSimulation replaces any running simulation with a fresh node, deploys the game
// contracts administered by admin and returns the deployed contracts.
func (c *Controller) StartSimulation(ctx context.Context, admin common.Address) ([]DeployedContractRecord, error) {
	startTime := time.Now()
	records, err := c.startSimulation(ctx, admin)

	status := "success"
	if err != nil {
		status = "failure"
	}
	_ = c.metricsSink.Incr(metricsTypes.Metric_Incr_SimulationStarted, []metricsTypes.MetricsLabel{
		{Name: "status", Value: status},
	}, 1)
	_ = c.metricsSink.Timing(metricsTypes.Metric_Timing_SimulationStartup, time.Since(startTime), []metricsTypes.MetricsLabel{
		{Name: "status", Value: status},
	})
	return records, err
}

func (c *Controller) startSimulation(ctx context.Context, admin common.Address) ([]DeployedContractRecord, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, &SimulationError{Stage: SimulationStage_Lock, Message: "gave up waiting for the running simulation request", Err: err}
	}
	defer c.release()

	runId := uuid.New().String()
	c.logger.Sugar().Infow("Starting simulation",
		zap.String("runId", runId),
		zap.String("adminAddress", admin.Hex()),
		zap.String("deployer", c.deployer.Hex()),
	)

	c.reset(ctx)

	node, err := c.runner.Start(CommandSpec{
		Name: c.config.Simulation.NodeBinary,
		Args: c.config.Simulation.NodeArgs,
	})
	if err != nil {
		return nil, &SimulationError{Stage: SimulationStage_Spawn, Message: "failed to start node", Err: err}
	}
	c.node = node
	_ = c.metricsSink.Gauge(metricsTypes.Metric_Gauge_SimulationRunning, 1, nil)

	chainId, err := c.waitForNode(ctx, node)
	if err != nil {
		c.stopNode()
		return nil, err
	}

	records, err := c.deploy(ctx, admin, chainId)
	if err != nil {
		c.stopNode()
		return nil, err
	}

	handle := &SimulationHandle{
		RunId:        runId,
		AdminAddress: admin,
		NodePid:      node.Pid(),
		RpcUrl:       c.config.RpcUrl,
		ChainId:      chainId,
		StartedAt:    time.Now(),
		Contracts:    records,
	}
	c.setHandle(handle)

	c.publishGameAddress(chainId, records)

	c.logger.Sugar().Infow("Simulation started",
		zap.String("runId", runId),
		zap.Int("nodePid", handle.NodePid),
		zap.Uint64("chainId", chainId),
		zap.Int("contracts", len(records)),
	)
	return records, nil
}

// publishGameAddress only overrides the local chain. A node that reports another chain id
// must not redirect reads of a public deployment.
func (c *Controller) publishGameAddress(chainId uint64, records []DeployedContractRecord) {
	if c.publisher == nil {
		return
	}
	if chainId != config.ChainId_Foundry {
		c.logger.Sugar().Warnw("Simulation node reports a non local chain, not publishing the game address",
			zap.Uint64("chainId", chainId),
			zap.Uint64("expectedChainId", config.ChainId_Foundry),
		)
		return
	}
	for _, r := range records {
		if r.Name == c.config.ContractName {
			c.publisher.SetOverride(chainId, r.Address)
		}
	}
}

func (c *Controller) waitForNode(ctx context.Context, node NodeProcess) (uint64, error) {
	readyCtx, cancel := context.WithTimeout(ctx, c.config.Simulation.ReadyTimeout)
	defer cancel()

	type readyResult struct {
		chainId *big.Int
		err     error
	}
	resultChan := make(chan readyResult, 1)
	go func() {
		chainId, err := c.probe.WaitForReady(readyCtx, c.config.PollInterval)
		resultChan <- readyResult{chainId: chainId, err: err}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil {
			return 0, &SimulationError{
				Stage:   SimulationStage_Ready,
				Message: fmt.Sprintf("node at '%s' not ready within %s", c.config.RpcUrl, c.config.Simulation.ReadyTimeout),
				Output:  node.Output(),
				Err:     res.err,
			}
		}
		if !res.chainId.IsUint64() {
			return 0, &SimulationError{Stage: SimulationStage_Ready, Message: fmt.Sprintf("unexpected chain id %s", res.chainId.String())}
		}
		return res.chainId.Uint64(), nil
	case <-node.Done():
		return 0, &SimulationError{
			Stage:   SimulationStage_Ready,
			Message: "node exited before becoming ready",
			Output:  node.Output(),
			Err:     node.Err(),
		}
	}
}

func (c *Controller) deploy(ctx context.Context, admin common.Address, chainId uint64) ([]DeployedContractRecord, error) {
	sc := c.config.Simulation
	deployCtx, cancel := context.WithTimeout(ctx, sc.DeployTimeout)
	defer cancel()

	startTime := time.Now()
	res, err := c.runner.Run(deployCtx, CommandSpec{
		Name: sc.DeployBinary,
		Args: []string{
			"script", sc.DeployScript,
			"--broadcast",
			"--rpc-url", c.config.RpcUrl,
			"--private-key", sc.PrivateKey,
		},
		Dir: sc.ContractsDir,
		Env: []string{fmt.Sprintf("%s=%s", sc.AdminAddressEnv, admin.Hex())},
	})
	if err != nil {
		se := &SimulationError{Stage: SimulationStage_Deploy, Message: "deployment did not complete", Err: err}
		if res != nil {
			se.Output = res.Stderr
			se.ExitCode = res.ExitCode
		}
		return nil, se
	}
	if res.ExitCode != 0 {
		output := res.Stderr
		if strings.TrimSpace(output) == "" {
			output = res.Stdout
		}
		return nil, &SimulationError{
			Stage:    SimulationStage_Deploy,
			Message:  fmt.Sprintf("deployment exited with code %d", res.ExitCode),
			Output:   strings.TrimSpace(output),
			ExitCode: res.ExitCode,
		}
	}
	_ = c.metricsSink.Timing(metricsTypes.Metric_Timing_SimulationDeployment, time.Since(startTime), []metricsTypes.MetricsLabel{
		{Name: "addressSource", Value: string(sc.AddressSource)},
	})

	var records []DeployedContractRecord
	if sc.AddressSource == config.AddressSource_Broadcast {
		records, err = ReadBroadcastFile(BroadcastFilePath(sc.ContractsDir, sc.DeployScript, chainId))
	} else {
		records, err = ParseDeployOutput(res.Stdout, sc.StrictOutput)
	}
	if err != nil {
		return nil, &SimulationError{Stage: SimulationStage_Extract, Message: "failed to extract deployed contracts", Err: err}
	}
	return records, nil
}

// reset stops the tracked node and any stale node process. It never fails.
func (c *Controller) reset(ctx context.Context) (bool, int) {
	stopped := c.stopNode()

	reaped, err := c.reaper.Reap(ctx, c.config.Simulation.NodeSignature)
	if err != nil {
		c.logger.Sugar().Warnw("Failed to reap stale node processes", zap.Error(err))
	}
	return stopped, reaped
}

// stopNode interrupts the tracked node and kills it if it does not exit in time.
func (c *Controller) stopNode() bool {
	c.mu.Lock()
	handle := c.handle
	c.handle = nil
	c.mu.Unlock()
	if handle != nil && c.publisher != nil {
		c.publisher.ClearOverride(handle.ChainId)
	}

	node := c.node
	c.node = nil
	if node == nil {
		return false
	}
	_ = c.metricsSink.Gauge(metricsTypes.Metric_Gauge_SimulationRunning, 0, nil)

	select {
	case <-node.Done():
		return false
	default:
	}

	if err := node.Signal(os.Interrupt); err != nil {
		c.logger.Sugar().Warnw("Failed to interrupt node", zap.Int("pid", node.Pid()), zap.Error(err))
	}
	select {
	case <-node.Done():
		return true
	case <-time.After(c.config.Simulation.KillTimeout):
	}

	c.logger.Sugar().Warnw("Node did not exit after interrupt, killing it", zap.Int("pid", node.Pid()))
	if err := node.Kill(); err != nil {
		c.logger.Sugar().Warnw("Failed to kill node", zap.Int("pid", node.Pid()), zap.Error(err))
	}
	select {
	case <-node.Done():
	case <-time.After(c.config.Simulation.KillTimeout):
		c.logger.Sugar().Errorw("Node still running after kill", zap.Int("pid", node.Pid()))
	}
	return true
}

// KillSimulation stops the running simulation, if any, and waits for it to exit. It is
// best effort: failures are logged and reflected in the result only.
func (c *Controller) KillSimulation(ctx context.Context) *KillResult {
	if err := c.acquire(ctx); err != nil {
		c.logger.Sugar().Warnw("Gave up waiting to kill the simulation", zap.Error(err))
		return &KillResult{}
	}
	defer c.release()

	stopped, reaped := c.reset(ctx)
	result := &KillResult{
		Stopped: stopped || reaped > 0,
		Reaped:  reaped,
	}
	_ = c.metricsSink.Incr(metricsTypes.Metric_Incr_SimulationKilled, []metricsTypes.MetricsLabel{
		{Name: "stopped", Value: fmt.Sprintf("%v", result.Stopped)},
	}, 1)
	c.logger.Sugar().Infow("Killed simulation",
		zap.Bool("stopped", result.Stopped),
		zap.Int("reaped", result.Reaped),
	)
	return result
}

// Close stops the tracked node on shutdown. It waits at most for ctx for a running
// request to finish.
func (c *Controller) Close(ctx context.Context) {
	if err := c.acquire(ctx); err != nil {
		c.logger.Sugar().Errorw("Failed to stop simulation on shutdown", zap.Error(err))
		return
	}
	defer c.release()
	c.stopNode()
}
