package rpcServer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/logSynchronizer"
	"go.uber.org/zap"
)

const maxRequestBodyBytes = 1 << 20

type ErrorResponse struct {
	Error     string `json:"error"`
	Stage     string `json:"stage,omitempty"`
	RequestId string `json:"requestId,omitempty"`
}

func (rpc *RpcServer) writeJson(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rpc.Logger.Sugar().Errorw("Failed to write response", zap.Error(err))
	}
}

func (rpc *RpcServer) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	rpc.writeErrorResponse(w, r, status, &ErrorResponse{Error: err.Error()})
}

func (rpc *RpcServer) writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, res *ErrorResponse) {
	res.RequestId = requestIdFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		rpc.Logger.Sugar().Errorw("Request failed",
			zap.String("requestId", res.RequestId),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.String("error", res.Error),
		)
	}
	rpc.writeJson(w, status, res)
}

// decodeJsonBody reads a single JSON object from the request body.
func decodeJsonBody(r *http.Request, w http.ResponseWriter, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if decoder.More() {
		return fmt.Errorf("invalid request body: unexpected data after JSON object")
	}
	return nil
}

// statusForChainError maps chain access failures to HTTP statuses.
func statusForChainError(err error) int {
	var unsupported *logSynchronizer.UnsupportedChainError
	if errors.As(err, &unsupported) {
		return http.StatusNotImplemented
	}
	var queryErr *logSynchronizer.ChainQueryError
	if errors.As(err, &queryErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
