// Package ethereum is a thin, stateless handle to a JSON-RPC speaking node. It covers the
// handful of read calls the sidecar needs: chain id, head, log filters and eth_call.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"go.uber.org/zap"
)

const methodNotFoundCode = -32601

type EthereumClientConfig struct {
	BaseUrl        string
	RequestTimeout time.Duration
}

func DefaultEthereumClientConfig() *EthereumClientConfig {
	return &EthereumClientConfig{
		BaseUrl:        "http://0.0.0.0:8545",
		RequestTimeout: 30 * time.Second,
	}
}

func ConvertGlobalConfigToEthereumConfig(cfg *config.EthereumRpcConfig) *EthereumClientConfig {
	c := DefaultEthereumClientConfig()
	if cfg.RpcUrl != "" {
		c.BaseUrl = cfg.RpcUrl
	}
	if cfg.RequestTimeout > 0 {
		c.RequestTimeout = cfg.RequestTimeout
	}
	return c
}

type Client struct {
	BaseUrl      string
	clientConfig *EthereumClientConfig
	httpClient   *http.Client
	Logger       *zap.Logger

	mu        sync.Mutex
	rpcClient *rpc.Client
}

func NewClient(cfg *EthereumClientConfig, l *zap.Logger) *Client {
	l.Sugar().Infow("Creating ethereum client", zap.String("baseUrl", cfg.BaseUrl))
	return &Client{
		BaseUrl:      cfg.BaseUrl,
		clientConfig: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		Logger: l,
	}
}

// SetHttpClient swaps the transport used for every subsequent request.
func (c *Client) SetHttpClient(client *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.httpClient = client
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}

func (c *Client) getRpcClient(ctx context.Context) (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpcClient != nil {
		return c.rpcClient, nil
	}
	rc, err := rpc.DialOptions(ctx, c.BaseUrl, rpc.WithHTTPClient(c.httpClient))
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to dial '%s'", c.BaseUrl))
	}
	c.rpcClient = rc
	return rc, nil
}

func (c *Client) eth(ctx context.Context) (*ethclient.Client, error) {
	rc, err := c.getRpcClient(ctx)
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(rc), nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ec, err := c.eth(ctx)
	if err != nil {
		return nil, err
	}
	return ec.ChainID(ctx)
}

// NewFilter installs a log filter on the node and returns its id.
func (c *Client) NewFilter(ctx context.Context, q ethereum.FilterQuery) (string, error) {
	rc, err := c.getRpcClient(ctx)
	if err != nil {
		return "", err
	}
	var id string
	if err := rc.CallContext(ctx, &id, "eth_newFilter", toFilterArg(q)); err != nil {
		return "", err
	}
	c.Logger.Sugar().Debugw("Installed log filter", zap.String("filterId", id))
	return id, nil
}

func (c *Client) GetFilterLogs(ctx context.Context, filterId string) ([]types.Log, error) {
	rc, err := c.getRpcClient(ctx)
	if err != nil {
		return nil, err
	}
	var logs []types.Log
	if err := rc.CallContext(ctx, &logs, "eth_getFilterLogs", filterId); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *Client) UninstallFilter(ctx context.Context, filterId string) (bool, error) {
	rc, err := c.getRpcClient(ctx)
	if err != nil {
		return false, err
	}
	var removed bool
	if err := rc.CallContext(ctx, &removed, "eth_uninstallFilter", filterId); err != nil {
		return false, err
	}
	return removed, nil
}

// FilterLogs runs the query as a one-shot eth_getLogs.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	ec, err := c.eth(ctx)
	if err != nil {
		return nil, err
	}
	return ec.FilterLogs(ctx, q)
}

// CallContract executes eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	ec, err := c.eth(ctx)
	if err != nil {
		return nil, err
	}
	return ec.CallContract(ctx, msg, nil)
}

// WaitForReady polls eth_chainId until the node answers or ctx expires.
func (c *Client) WaitForReady(ctx context.Context, pollInterval time.Duration) (*big.Int, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		chainId, err := c.ChainID(ctx)
		if err == nil {
			c.Logger.Sugar().Debugw("Node is ready",
				zap.String("baseUrl", c.BaseUrl),
				zap.Int("attempts", attempts),
				zap.String("chainId", chainId.String()),
			)
			return chainId, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), fmt.Sprintf("node at '%s' not ready after %d attempts: %v", c.BaseUrl, attempts, err))
		case <-ticker.C:
		}
	}
}

// IsMethodNotFound reports whether the node rejected the call because it does not
// implement the method.
func IsMethodNotFound(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() == methodNotFoundCode
	}
	return false
}

func toFilterArg(q ethereum.FilterQuery) map[string]interface{} {
	arg := map[string]interface{}{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.BlockHash != nil {
		arg["blockHash"] = *q.BlockHash
		return arg
	}
	if q.FromBlock == nil {
		arg["fromBlock"] = "0x0"
	} else {
		arg["fromBlock"] = toBlockNumArg(q.FromBlock)
	}
	arg["toBlock"] = toBlockNumArg(q.ToBlock)
	return arg
}

func toBlockNumArg(number *big.Int) string {
	if number == nil {
		return "latest"
	}
	if number.Sign() >= 0 {
		return hexutil.EncodeBig(number)
	}
	return rpc.BlockNumber(number.Int64()).String()
}
