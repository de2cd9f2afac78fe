package epochTiming

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/types/numbers"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/logSynchronizer"
	"go.uber.org/zap"
)

const (
	getEpochMethod       = "getEpoch"
	settingsMethod       = "settings"
	epochSecondsSettings = "epochSeconds"
)

type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// ContractResolver finds the contract deployed on the connected chain.
type ContractResolver interface {
	ResolveContract(ctx context.Context) (uint64, common.Address, error)
}

type EpochReader struct {
	caller   ContractCaller
	resolver ContractResolver
	abi      *abi.ABI
	logger   *zap.Logger
}

// NewEpochReader checks that contractAbi has the view methods the reader calls.
func NewEpochReader(caller ContractCaller, resolver ContractResolver, contractAbi *abi.ABI, l *zap.Logger) (*EpochReader, error) {
	if _, ok := contractAbi.Methods[getEpochMethod]; !ok {
		return nil, fmt.Errorf("abi has no '%s' method", getEpochMethod)
	}
	settings, ok := contractAbi.Methods[settingsMethod]
	if !ok {
		return nil, fmt.Errorf("abi has no '%s' method", settingsMethod)
	}
	if outputIndex(settings.Outputs, epochSecondsSettings) < 0 {
		return nil, fmt.Errorf("'%s' has no '%s' output", settingsMethod, epochSecondsSettings)
	}
	return &EpochReader{
		caller:   caller,
		resolver: resolver,
		abi:      contractAbi,
		logger:   l,
	}, nil
}

func outputIndex(args abi.Arguments, name string) int {
	for i, arg := range args {
		if arg.Name == name {
			return i
		}
	}
	return -1
}

// ReadEpochState reads the current epoch and the epoch duration.
func (er *EpochReader) ReadEpochState(ctx context.Context) (*EpochState, error) {
	_, address, err := er.resolver.ResolveContract(ctx)
	if err != nil {
		return nil, err
	}

	epochValues, err := er.call(ctx, address, getEpochMethod)
	if err != nil {
		return nil, err
	}
	currentEpoch, err := toBigInt(epochValues, 0)
	if err != nil {
		return nil, errors.Wrap(err, getEpochMethod)
	}

	settingsValues, err := er.call(ctx, address, settingsMethod)
	if err != nil {
		return nil, err
	}
	duration, err := toBigInt(settingsValues, outputIndex(er.abi.Methods[settingsMethod].Outputs, epochSecondsSettings))
	if err != nil {
		return nil, errors.Wrap(err, settingsMethod)
	}

	er.logger.Sugar().Debugw("Read epoch state",
		zap.String("address", address.Hex()),
		zap.String("currentEpoch", currentEpoch.String()),
		zap.String("epochSeconds", duration.String()),
	)

	return &EpochState{
		CurrentEpoch:         numbers.NewLargeInteger(currentEpoch),
		EpochDurationSeconds: numbers.NewLargeInteger(duration),
	}, nil
}

func (er *EpochReader) call(ctx context.Context, address common.Address, method string) ([]interface{}, error) {
	data, err := er.abi.Pack(method)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to pack '%s'", method))
	}
	out, err := er.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &address,
		Data: data,
	})
	if err != nil {
		return nil, &logSynchronizer.ChainQueryError{
			Method: "eth_call",
			Err:    errors.Wrap(err, fmt.Sprintf("failed to call '%s'", method)),
		}
	}
	values, err := er.abi.Unpack(method, out)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to unpack '%s'", method))
	}
	return values, nil
}

func toBigInt(values []interface{}, index int) (*big.Int, error) {
	if index < 0 || index >= len(values) {
		return nil, fmt.Errorf("missing output %d", index)
	}
	v, ok := values[index].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output %d is %T, not an integer", index, values[index])
	}
	return v, nil
}
