package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/logger"
)

var adminAddress = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

type fakeNode struct {
	pid             int
	done            chan struct{}
	once            sync.Once
	ignoreInterrupt bool
	onExit          func()

	mu      sync.Mutex
	signals []os.Signal
	killed  bool
}

func (n *fakeNode) exit() {
	n.once.Do(func() {
		if n.onExit != nil {
			n.onExit()
		}
		close(n.done)
	})
}

func (n *fakeNode) Pid() int              { return n.pid }
func (n *fakeNode) Done() <-chan struct{} { return n.done }
func (n *fakeNode) Err() error            { return fmt.Errorf("signal: interrupt") }
func (n *fakeNode) Output() string        { return "Listening on 0.0.0.0:8545" }

func (n *fakeNode) Signal(sig os.Signal) error {
	n.mu.Lock()
	n.signals = append(n.signals, sig)
	n.mu.Unlock()
	if !n.ignoreInterrupt {
		n.exit()
	}
	return nil
}

func (n *fakeNode) Kill() error {
	n.mu.Lock()
	n.killed = true
	n.mu.Unlock()
	n.exit()
	return nil
}

type fakeRunner struct {
	mu              sync.Mutex
	alive           int
	maxAlive        int
	nodes           []*fakeNode
	runs            []CommandSpec
	startErr        error
	result          *Result
	deployDelay     time.Duration
	exitOnStart     bool
	ignoreInterrupt bool
}

func (r *fakeRunner) Start(spec CommandSpec) (NodeProcess, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alive++
	if r.alive > r.maxAlive {
		r.maxAlive = r.alive
	}
	node := &fakeNode{
		pid:             1000 + len(r.nodes),
		done:            make(chan struct{}),
		ignoreInterrupt: r.ignoreInterrupt,
		onExit: func() {
			r.mu.Lock()
			r.alive--
			r.mu.Unlock()
		},
	}
	r.nodes = append(r.nodes, node)
	if r.exitOnStart {
		go node.exit()
	}
	return node, nil
}

func (r *fakeRunner) Run(ctx context.Context, spec CommandSpec) (*Result, error) {
	r.mu.Lock()
	r.runs = append(r.runs, spec)
	r.mu.Unlock()

	select {
	case <-time.After(r.deployDelay):
	case <-ctx.Done():
		return &Result{ExitCode: -1, Stderr: "interrupted"}, ctx.Err()
	}
	res := *r.result
	return &res, nil
}

func (r *fakeRunner) aliveNodes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alive
}

type fakeProbe struct {
	chainId *big.Int
	hang    bool
}

func (p *fakeProbe) WaitForReady(ctx context.Context, pollInterval time.Duration) (*big.Int, error) {
	if p.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.chainId, nil
}

type fakeReaper struct {
	mu     sync.Mutex
	calls  int
	reaped int
	err    error
}

func (r *fakeReaper) Reap(ctx context.Context, signature string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.reaped, r.err
}

type fakePublisher struct {
	mu        sync.Mutex
	overrides map[uint64]common.Address
}

func (p *fakePublisher) SetOverride(chainId uint64, address common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[chainId] = address
}

func (p *fakePublisher) ClearOverride(chainId uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.overrides, chainId)
}

type controllerFixture struct {
	controller *Controller
	runner     *fakeRunner
	probe      *fakeProbe
	reaper     *fakeReaper
	publisher  *fakePublisher
}

func testControllerConfig() *ControllerConfig {
	return &ControllerConfig{
		Simulation: config.SimulationConfig{
			RpcUrl:          "http://0.0.0.0:8545",
			NodeBinary:      "anvil",
			NodeArgs:        []string{"--host", "0.0.0.0", "--port", "8545"},
			NodeSignature:   "anvil",
			ContractsDir:    "../contracts",
			DeployBinary:    "forge",
			DeployScript:    "script/TankGameDeployerSim.s.sol",
			PrivateKey:      config.AnvilDevPrivateKey,
			ReadyTimeout:    time.Second,
			DeployTimeout:   time.Second,
			KillTimeout:     50 * time.Millisecond,
			AddressSource:   config.AddressSource_Stdout,
			AdminAddressEnv: "ADMIN_ADDRESS",
		},
		RpcUrl:       "http://0.0.0.0:8545",
		ContractName: "TankGame",
		PollInterval: 10 * time.Millisecond,
	}
}

func deployOutput(lines ...string) *Result {
	return &Result{Stdout: strings.Join(lines, "\n") + "\n"}
}

func setupController(t *testing.T, cfg *ControllerConfig, runner *fakeRunner) *controllerFixture {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)

	if runner.result == nil {
		runner.result = deployOutput(
			"Foo at address: "+fooAddress,
			"Bar at address: "+barAddress,
			"ONCHAIN EXECUTION COMPLETE & SUCCESSFUL.",
		)
	}
	f := &controllerFixture{
		runner:    runner,
		probe:     &fakeProbe{chainId: big.NewInt(31337)},
		reaper:    &fakeReaper{},
		publisher: &fakePublisher{overrides: make(map[uint64]common.Address)},
	}
	c, err := NewController(cfg, runner, f.reaper, f.probe, f.publisher, nil, l)
	require.Nil(t, err)
	f.controller = c
	return f
}

func Test_Controller_StartSimulation(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns the deployed contracts from the deploy output", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{})

		records, err := f.controller.StartSimulation(ctx, adminAddress)
		require.Nil(t, err)
		assert.Equal(t, []DeployedContractRecord{
			{Name: "Foo", Address: common.HexToAddress(fooAddress)},
			{Name: "Bar", Address: common.HexToAddress(barAddress)},
		}, records)

		require.Len(t, f.runner.runs, 1)
		run := f.runner.runs[0]
		assert.Equal(t, "forge", run.Name)
		assert.Equal(t, []string{
			"script", "script/TankGameDeployerSim.s.sol",
			"--broadcast",
			"--rpc-url", "http://0.0.0.0:8545",
			"--private-key", config.AnvilDevPrivateKey,
		}, run.Args)
		assert.Equal(t, "../contracts", run.Dir)
		assert.Equal(t, []string{"ADMIN_ADDRESS=" + adminAddress.Hex()}, run.Env)

		status := f.controller.Status()
		require.NotNil(t, status)
		assert.Equal(t, adminAddress, status.AdminAddress)
		assert.Equal(t, uint64(31337), status.ChainId)
		assert.Len(t, status.Contracts, 2)
		assert.NotEmpty(t, status.RunId)
		assert.Equal(t, 1, f.runner.aliveNodes())
		assert.Equal(t, 1, f.reaper.calls)
	})

	t.Run("Derives the deployer from the signing key", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{})
		assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), f.controller.deployer)
	})

	t.Run("Publishes the game contract address", func(t *testing.T) {
		runner := &fakeRunner{result: deployOutput("TankGame at address: " + barAddress)}
		f := setupController(t, testControllerConfig(), runner)

		_, err := f.controller.StartSimulation(ctx, adminAddress)
		require.Nil(t, err)
		assert.Equal(t, common.HexToAddress(barAddress), f.publisher.overrides[31337])

		f.controller.KillSimulation(ctx)
		assert.Len(t, f.publisher.overrides, 0)
	})

	t.Run("Deploys against the simulation node when the chain RPC points elsewhere", func(t *testing.T) {
		sim := testControllerConfig().Simulation
		sim.RpcUrl = "http://127.0.0.1:9545"
		cfg := ControllerConfigFromConfig(&config.Config{
			EthereumRpcConfig: config.EthereumRpcConfig{RpcUrl: "https://rpc.holesky.example"},
			ContractConfig:    config.ContractConfig{Name: "TankGame"},
			SimulationConfig:  sim,
		})

		runner := &fakeRunner{result: deployOutput("TankGame at address: " + barAddress)}
		f := setupController(t, cfg, runner)

		_, err := f.controller.StartSimulation(ctx, adminAddress)
		require.Nil(t, err)
		require.Len(t, f.runner.runs, 1)
		args := f.runner.runs[0].Args
		assert.Contains(t, strings.Join(args, " "), "--rpc-url http://127.0.0.1:9545")
		assert.NotContains(t, args, "https://rpc.holesky.example")
		assert.Equal(t, "http://127.0.0.1:9545", f.controller.Status().RpcUrl)
	})

	t.Run("Does not publish the game address for a non local chain", func(t *testing.T) {
		runner := &fakeRunner{result: deployOutput("TankGame at address: " + barAddress)}
		f := setupController(t, testControllerConfig(), runner)
		f.probe.chainId = big.NewInt(1)

		records, err := f.controller.StartSimulation(ctx, adminAddress)
		require.Nil(t, err)
		assert.Len(t, records, 1)
		assert.Len(t, f.publisher.overrides, 0)
		assert.Equal(t, uint64(1), f.controller.Status().ChainId)
	})

	t.Run("Returns no records when the deployment exits non-zero", func(t *testing.T) {
		runner := &fakeRunner{result: &Result{
			Stdout:   "Foo at address: " + fooAddress + "\n",
			Stderr:   "Error: script failed: revert\n",
			ExitCode: 1,
		}}
		f := setupController(t, testControllerConfig(), runner)

		records, err := f.controller.StartSimulation(ctx, adminAddress)
		assert.Len(t, records, 0)

		var simErr *SimulationError
		require.True(t, errors.As(err, &simErr))
		assert.Equal(t, SimulationStage_Deploy, simErr.Stage)
		assert.Equal(t, 1, simErr.ExitCode)
		assert.Contains(t, err.Error(), "script failed: revert")

		assert.Nil(t, f.controller.Status())
		assert.Equal(t, 0, f.runner.aliveNodes())
	})

	t.Run("Fails when the deployment times out", func(t *testing.T) {
		cfg := testControllerConfig()
		cfg.Simulation.DeployTimeout = 20 * time.Millisecond
		f := setupController(t, cfg, &fakeRunner{deployDelay: 5 * time.Second})

		_, err := f.controller.StartSimulation(ctx, adminAddress)
		var simErr *SimulationError
		require.True(t, errors.As(err, &simErr))
		assert.Equal(t, SimulationStage_Deploy, simErr.Stage)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Equal(t, 0, f.runner.aliveNodes())
	})

	t.Run("Fails when the node does not become ready", func(t *testing.T) {
		cfg := testControllerConfig()
		cfg.Simulation.ReadyTimeout = 20 * time.Millisecond
		f := setupController(t, cfg, &fakeRunner{})
		f.probe.hang = true

		_, err := f.controller.StartSimulation(ctx, adminAddress)
		var simErr *SimulationError
		require.True(t, errors.As(err, &simErr))
		assert.Equal(t, SimulationStage_Ready, simErr.Stage)
		assert.Len(t, f.runner.runs, 0)
		assert.Equal(t, 0, f.runner.aliveNodes())
	})

	t.Run("Fails fast when the node exits during start up", func(t *testing.T) {
		cfg := testControllerConfig()
		cfg.Simulation.ReadyTimeout = 10 * time.Second
		f := setupController(t, cfg, &fakeRunner{exitOnStart: true})
		f.probe.hang = true

		started := time.Now()
		_, err := f.controller.StartSimulation(ctx, adminAddress)
		var simErr *SimulationError
		require.True(t, errors.As(err, &simErr))
		assert.Equal(t, SimulationStage_Ready, simErr.Stage)
		assert.Contains(t, simErr.Message, "exited")
		assert.Less(t, time.Since(started), 5*time.Second)
	})

	t.Run("Fails when the node cannot be spawned", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{startErr: fmt.Errorf("anvil: executable file not found")})

		_, err := f.controller.StartSimulation(ctx, adminAddress)
		var simErr *SimulationError
		require.True(t, errors.As(err, &simErr))
		assert.Equal(t, SimulationStage_Spawn, simErr.Stage)
	})

	t.Run("Strict output mode rejects malformed deployment lines", func(t *testing.T) {
		cfg := testControllerConfig()
		cfg.Simulation.StrictOutput = true
		f := setupController(t, cfg, &fakeRunner{result: deployOutput("Foo at address: 0x12")})

		records, err := f.controller.StartSimulation(ctx, adminAddress)
		assert.Len(t, records, 0)
		var simErr *SimulationError
		require.True(t, errors.As(err, &simErr))
		assert.Equal(t, SimulationStage_Extract, simErr.Stage)
		assert.Equal(t, 0, f.runner.aliveNodes())
	})

	t.Run("Reads addresses from the broadcast file", func(t *testing.T) {
		cfg := testControllerConfig()
		cfg.Simulation.ContractsDir = t.TempDir()
		cfg.Simulation.AddressSource = config.AddressSource_Broadcast
		path := BroadcastFilePath(cfg.Simulation.ContractsDir, cfg.Simulation.DeployScript, 31337)
		require.Nil(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.Nil(t, os.WriteFile(path, []byte(broadcastJson), 0644))

		f := setupController(t, cfg, &fakeRunner{result: deployOutput("nothing to see")})
		records, err := f.controller.StartSimulation(ctx, adminAddress)
		require.Nil(t, err)
		assert.Len(t, records, 3)
		assert.Equal(t, common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"), f.publisher.overrides[31337])
	})

	t.Run("Replaces a running simulation", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{})

		_, err := f.controller.StartSimulation(ctx, adminAddress)
		require.Nil(t, err)
		_, err = f.controller.StartSimulation(ctx, adminAddress)
		require.Nil(t, err)

		assert.Len(t, f.runner.nodes, 2)
		assert.Equal(t, 1, f.runner.aliveNodes())
		assert.Equal(t, 1, f.runner.maxAlive)
		assert.Equal(t, []os.Signal{os.Interrupt}, f.runner.nodes[0].signals)
	})

	t.Run("Concurrent starts never run two nodes", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{deployDelay: 30 * time.Millisecond})

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.controller.StartSimulation(ctx, adminAddress)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			assert.Nil(t, err)
		}
		assert.Equal(t, 1, f.runner.maxAlive)
		assert.Equal(t, 1, f.runner.aliveNodes())
		assert.Len(t, f.runner.runs, 4)
	})

	t.Run("A waiting caller gives up when its context expires", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{})
		f.controller.lock <- struct{}{}
		defer f.controller.release()

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := f.controller.StartSimulation(waitCtx, adminAddress)

		var simErr *SimulationError
		require.True(t, errors.As(err, &simErr))
		assert.Equal(t, SimulationStage_Lock, simErr.Stage)
		assert.Len(t, f.runner.nodes, 0)
	})

	t.Run("Rejects an invalid signing key", func(t *testing.T) {
		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
		cfg := testControllerConfig()
		cfg.Simulation.PrivateKey = "0x1234"
		_, err := NewController(cfg, &fakeRunner{}, &fakeReaper{}, &fakeProbe{}, nil, nil, l)
		assert.NotNil(t, err)
	})
}

func Test_Controller_KillSimulation(t *testing.T) {
	ctx := context.Background()

	t.Run("Stops the running node", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{})
		_, err := f.controller.StartSimulation(ctx, adminAddress)
		require.Nil(t, err)

		res := f.controller.KillSimulation(ctx)
		assert.True(t, res.Stopped)
		assert.Equal(t, 0, f.runner.aliveNodes())
		assert.Nil(t, f.controller.Status())
	})

	t.Run("Succeeds without a running simulation", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{})
		res := f.controller.KillSimulation(ctx)
		assert.False(t, res.Stopped)
		assert.Equal(t, 1, f.reaper.calls)
	})

	t.Run("Reports stale processes it reaped", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{})
		f.reaper.reaped = 2
		res := f.controller.KillSimulation(ctx)
		assert.True(t, res.Stopped)
		assert.Equal(t, 2, res.Reaped)
	})

	t.Run("Succeeds when reaping fails", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{})
		f.reaper.err = fmt.Errorf("permission denied")
		res := f.controller.KillSimulation(ctx)
		assert.False(t, res.Stopped)
	})

	t.Run("Kills a node that ignores the interrupt", func(t *testing.T) {
		f := setupController(t, testControllerConfig(), &fakeRunner{ignoreInterrupt: true})
		_, err := f.controller.StartSimulation(ctx, adminAddress)
		require.Nil(t, err)

		res := f.controller.KillSimulation(ctx)
		assert.True(t, res.Stopped)
		assert.True(t, f.runner.nodes[0].killed)
		assert.Equal(t, 0, f.runner.aliveNodes())
	})
}
