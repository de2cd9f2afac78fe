// Package logSynchronizer fetches and decodes the event history of the TankGame contract.
package logSynchronizer

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethereumClient "github.com/tank-turn-tactics/tankgame-sidecar/pkg/clients/ethereum"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/deployments"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/logParser"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/metrics/metricsTypes"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/parser"
	"go.uber.org/zap"
)

// ChainClient is the part of the ethereum client the synchronizer needs.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	NewFilter(ctx context.Context, q ethereum.FilterQuery) (string, error)
	GetFilterLogs(ctx context.Context, filterId string) ([]types.Log, error)
	UninstallFilter(ctx context.Context, filterId string) (bool, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Synchronizer returns every TankGame event from a block onwards.
//
// Delivery is at-least-once: calls with overlapping ranges return the same events again
// and callers deduplicate on (TransactionHash, LogIndex).
type Synchronizer struct {
	client      ChainClient
	deployments *deployments.Table
	logParser   *logParser.LogParser
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger
}

func NewSynchronizer(
	client ChainClient,
	table *deployments.Table,
	contractAbi *abi.ABI,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *Synchronizer {
	return &Synchronizer{
		client:      client,
		deployments: table,
		logParser:   logParser.NewLogParser(contractAbi, l),
		metricsSink: ms,
		logger:      l,
	}
}

// ResolveContract returns the chain id of the connected node and the contract deployed on it.
func (s *Synchronizer) ResolveContract(ctx context.Context) (uint64, common.Address, error) {
	chainIdBig, err := s.client.ChainID(ctx)
	if err != nil {
		return 0, common.Address{}, &ChainQueryError{Method: "eth_chainId", Err: err}
	}
	if !chainIdBig.IsUint64() {
		return 0, common.Address{}, &ChainQueryError{Method: "eth_chainId", Err: fmt.Errorf("chain id %s out of range", chainIdBig.String())}
	}
	chainId := chainIdBig.Uint64()

	address, ok := s.deployments.Resolve(chainId)
	if !ok {
		return chainId, common.Address{}, &UnsupportedChainError{ChainId: chainId, Supported: s.deployments.ChainIds()}
	}
	return chainId, address, nil
}

// BuildFilter returns the query matching every ABI event of the contract from fromBlock to
// the head of the chain.
func (s *Synchronizer) BuildFilter(address common.Address, fromBlock uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   nil,
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{s.logParser.EventTopics()},
	}
}

// Synchronize returns every event of the contract emitted at or after fromBlock, ordered by
// block number and log index. Any log that does not decode fails the whole call.
func (s *Synchronizer) Synchronize(ctx context.Context, fromBlock uint64) ([]*parser.ContractEvent, error) {
	startTime := time.Now()

	chainId, address, err := s.ResolveContract(ctx)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to resolve contract", zap.Error(err))
		return nil, err
	}

	events, err := s.synchronize(ctx, address, fromBlock)
	_ = s.metricsSink.Timing(metricsTypes.Metric_Timing_LogSyncDuration, time.Since(startTime), []metricsTypes.MetricsLabel{
		{Name: "chain_id", Value: strconv.FormatUint(chainId, 10)},
		{Name: "hasError", Value: fmt.Sprintf("%v", err != nil)},
	})
	if err != nil {
		s.logger.Sugar().Errorw("Failed to synchronize logs",
			zap.Uint64("chainId", chainId),
			zap.Uint64("fromBlock", fromBlock),
			zap.Error(err),
		)
		return nil, err
	}
	_ = s.metricsSink.Incr(metricsTypes.Metric_Incr_EventsSynchronized, []metricsTypes.MetricsLabel{
		{Name: "chain_id", Value: strconv.FormatUint(chainId, 10)},
	}, float64(len(events)))

	s.logger.Sugar().Infow("Synchronized logs",
		zap.Uint64("chainId", chainId),
		zap.String("address", address.Hex()),
		zap.Uint64("fromBlock", fromBlock),
		zap.Int("events", len(events)),
	)
	return events, nil
}

func (s *Synchronizer) synchronize(ctx context.Context, address common.Address, fromBlock uint64) ([]*parser.ContractEvent, error) {
	query := s.BuildFilter(address, fromBlock)

	logs, err := s.fetchLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	events := make([]*parser.ContractEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			s.logger.Sugar().Debugw("Skipping removed log",
				zap.String("transactionHash", lg.TxHash.Hex()),
				zap.Uint("logIndex", lg.Index),
			)
			continue
		}
		if lg.BlockNumber < fromBlock {
			return nil, fmt.Errorf("node returned log from block %d, before requested block %d", lg.BlockNumber, fromBlock)
		}
		event, err := s.logParser.DecodeLog(address, lg)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if c := events[i].BlockNumber.Cmp(events[j].BlockNumber); c != 0 {
			return c < 0
		}
		return events[i].LogIndex.Cmp(events[j].LogIndex) < 0
	})
	return events, nil
}

// fetchLogs installs a filter, reads it and uninstalls it. Nodes without filter support
// are queried with eth_getLogs instead.
func (s *Synchronizer) fetchLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	filterId, err := s.client.NewFilter(ctx, query)
	if err != nil {
		if ethereumClient.IsMethodNotFound(err) {
			s.logger.Sugar().Infow("Node does not support filters, falling back to eth_getLogs", zap.Error(err))
			logs, err := s.client.FilterLogs(ctx, query)
			if err != nil {
				return nil, &ChainQueryError{Method: "eth_getLogs", Err: err}
			}
			return logs, nil
		}
		return nil, &ChainQueryError{Method: "eth_newFilter", Err: err}
	}
	defer func() {
		if _, err := s.client.UninstallFilter(context.WithoutCancel(ctx), filterId); err != nil {
			s.logger.Sugar().Warnw("Failed to uninstall filter",
				zap.String("filterId", filterId),
				zap.Error(err),
			)
		}
	}()

	logs, err := s.client.GetFilterLogs(ctx, filterId)
	if err != nil {
		return nil, &ChainQueryError{Method: "eth_getFilterLogs", Err: err}
	}
	return logs, nil
}
