package simulation

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DeployedContractRecord is one contract reported by a deployment run.
type DeployedContractRecord struct {
	Name    string         `json:"name"`
	Address common.Address `json:"address"`
}

// SimulationHandle describes the running simulation.
type SimulationHandle struct {
	RunId        string                   `json:"runId"`
	AdminAddress common.Address           `json:"adminAddress"`
	NodePid      int                      `json:"nodePid"`
	RpcUrl       string                   `json:"rpcUrl"`
	ChainId      uint64                   `json:"chainId"`
	StartedAt    time.Time                `json:"startedAt"`
	Contracts    []DeployedContractRecord `json:"contracts"`
}

type SimulationStage string

var (
	SimulationStage_Lock    SimulationStage = "lock"
	SimulationStage_Spawn   SimulationStage = "spawn"
	SimulationStage_Ready   SimulationStage = "ready"
	SimulationStage_Deploy  SimulationStage = "deploy"
	SimulationStage_Extract SimulationStage = "extract"
)

// SimulationError is returned when a simulation could not be brought up. Output carries the
// diagnostic text of the failing process, if any.
type SimulationError struct {
	Stage    SimulationStage
	Message  string
	Output   string
	ExitCode int
	Err      error
}

func (e *SimulationError) Error() string {
	msg := fmt.Sprintf("simulation failed at %s: %s", e.Stage, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\n%s", msg, e.Output)
	}
	return msg
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// KillResult reports what a teardown did.
type KillResult struct {
	// Stopped is true when a tracked node or a stale node process was terminated
	Stopped bool `json:"stopped"`
	// Reaped counts the stale node processes terminated by signature
	Reaped int `json:"reaped"`
}
