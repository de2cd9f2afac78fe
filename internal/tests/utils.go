package tests

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/jarcoal/httpmock"
)

//go:embed testdata
var testData embed.FS

// GetTankGameArtifact returns a forge style artifact ({"abi": [...], "metadata": {...}})
// with a subset of the TankGame interface.
func GetTankGameArtifact() ([]byte, error) {
	return testData.ReadFile("testdata/TankGame.json")
}

// GetTankGameAbiJson returns only the "abi" member of the test artifact.
func GetTankGameAbiJson() (string, error) {
	contents, err := GetTankGameArtifact()
	if err != nil {
		return "", err
	}
	artifact := struct {
		Abi json.RawMessage `json:"abi"`
	}{}
	if err := json.Unmarshal(contents, &artifact); err != nil {
		return "", err
	}
	return string(artifact.Abi), nil
}

// RpcError is returned by a RpcHandler to produce a JSON-RPC error object.
type RpcError struct {
	Code    int
	Message string
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// RpcHandler answers a single JSON-RPC method call.
type RpcHandler func(params []json.RawMessage) (interface{}, error)

type rpcRequest struct {
	JsonRpc string            `json:"jsonrpc"`
	Id      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JsonRpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcErrorBody   `json:"error,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RpcRecorder keeps the method names of every call a JsonRpcResponder served.
type RpcRecorder struct {
	mu      sync.Mutex
	methods []string
}

func (r *RpcRecorder) record(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods = append(r.methods, method)
}

func (r *RpcRecorder) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.methods...)
}

// NewJsonRpcResponder builds an httpmock responder that dispatches JSON-RPC calls by method
// name. Unknown methods get a -32601 error like a real node.
func NewJsonRpcResponder(handlers map[string]RpcHandler, recorder *RpcRecorder) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		var rpcReq rpcRequest
		if err := json.NewDecoder(req.Body).Decode(&rpcReq); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
		}
		if recorder != nil {
			recorder.record(rpcReq.Method)
		}

		res := rpcResponse{JsonRpc: "2.0", Id: rpcReq.Id}
		handler, ok := handlers[rpcReq.Method]
		if !ok {
			res.Error = &rpcErrorBody{Code: -32601, Message: fmt.Sprintf("the method %s does not exist/is not available", rpcReq.Method)}
			return httpmock.NewJsonResponse(http.StatusOK, res)
		}

		result, err := handler(rpcReq.Params)
		if err != nil {
			code := -32000
			if rpcErr, ok := err.(*RpcError); ok {
				code = rpcErr.Code
				err = fmt.Errorf("%s", rpcErr.Message)
			}
			res.Error = &rpcErrorBody{Code: code, Message: err.Error()}
			return httpmock.NewJsonResponse(http.StatusOK, res)
		}
		res.Result = result
		return httpmock.NewJsonResponse(http.StatusOK, res)
	}
}

// NewMockHttpClient returns an http.Client whose transport is served by the given responder
// for POSTs to url.
func NewMockHttpClient(url string, responder httpmock.Responder) (*http.Client, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, url, responder)
	return &http.Client{Transport: transport}, transport
}
