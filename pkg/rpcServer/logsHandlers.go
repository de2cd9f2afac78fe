package rpcServer

import (
	"errors"
	"net/http"

	"github.com/tank-turn-tactics/tankgame-sidecar/internal/types/numbers"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/parser"
	"go.uber.org/zap"
)

type GetLogsRequest struct {
	FromBlock *numbers.LargeInteger `json:"fromBlock"`
}

// GetLogs returns every contract event from fromBlock through the latest block.
func (rpc *RpcServer) GetLogs(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	req := &GetLogsRequest{}
	if err := decodeJsonBody(r, w, req); err != nil {
		rpc.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.FromBlock == nil {
		rpc.writeError(w, r, http.StatusBadRequest, errors.New("fromBlock is required"))
		return
	}
	if req.FromBlock.BigInt().Sign() < 0 || !req.FromBlock.IsUint64() {
		rpc.writeError(w, r, http.StatusBadRequest, errors.New("fromBlock must be a block number"))
		return
	}
	fromBlock := req.FromBlock.Uint64()

	events, err := rpc.synchronizer.Synchronize(r.Context(), fromBlock)
	if err != nil {
		rpc.writeError(w, r, statusForChainError(err), err)
		return
	}
	if events == nil {
		events = make([]*parser.ContractEvent, 0)
	}

	rpc.Logger.Sugar().Debugw("Returning events",
		zap.Uint64("fromBlock", fromBlock),
		zap.Int("count", len(events)),
	)
	rpc.writeJson(w, http.StatusOK, events)
}
