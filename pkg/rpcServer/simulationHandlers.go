package rpcServer

import (
	"context"
	"errors"
	"net/http"

	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/simulation"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/utils"
	"go.uber.org/zap"
)

type InitSimulationRequest struct {
	AdminAddress string `json:"adminAddress"`
}

type DeployedContract struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type KillSimulationResponse struct {
	Message string `json:"message"`
	Stopped bool   `json:"stopped"`
	Reaped  int    `json:"reaped"`
}

// InitSimulation replaces any running simulation with a fresh node and deployment owned
// by the given admin.
func (rpc *RpcServer) InitSimulation(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	req := &InitSimulationRequest{}
	if err := decodeJsonBody(r, w, req); err != nil {
		rpc.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.AdminAddress == "" {
		rpc.writeError(w, r, http.StatusBadRequest, errors.New("adminAddress is required"))
		return
	}
	admin, err := utils.ParseAddress(req.AdminAddress)
	if err != nil {
		rpc.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	// detached from the request; every controller stage has its own timeout
	records, err := rpc.controller.StartSimulation(context.WithoutCancel(r.Context()), admin)
	if err != nil {
		res := &ErrorResponse{Error: err.Error()}
		var simErr *simulation.SimulationError
		if errors.As(err, &simErr) {
			res.Stage = string(simErr.Stage)
		}
		rpc.writeErrorResponse(w, r, http.StatusInternalServerError, res)
		return
	}

	contracts := make([]*DeployedContract, 0, len(records))
	for _, record := range records {
		contracts = append(contracts, &DeployedContract{
			Name:    record.Name,
			Address: record.Address.Hex(),
		})
	}
	rpc.Logger.Sugar().Infow("Simulation initialized",
		zap.String("admin", admin.Hex()),
		zap.Int("contracts", len(contracts)),
	)
	rpc.writeJson(w, http.StatusOK, contracts)
}

// KillSimulation tears down the simulation. It always succeeds.
func (rpc *RpcServer) KillSimulation(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	res := rpc.controller.KillSimulation(context.WithoutCancel(r.Context()))
	if res == nil {
		res = &simulation.KillResult{}
	}
	rpc.writeJson(w, http.StatusOK, &KillSimulationResponse{
		Message: "kill the simulation",
		Stopped: res.Stopped,
		Reaped:  res.Reaped,
	})
}

func (rpc *RpcServer) GetSimulationStatus(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	handle := rpc.controller.Status()
	if handle == nil {
		rpc.writeError(w, r, http.StatusNotFound, errors.New("no simulation is running"))
		return
	}
	rpc.writeJson(w, http.StatusOK, handle)
}
