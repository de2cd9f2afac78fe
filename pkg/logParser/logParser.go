// Package logParser decodes raw logs against a single contract ABI. Decoding is strict:
// a log that does not match the ABI exactly is an error, never a partially filled event.
package logParser

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/types/numbers"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/parser"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/utils"
	"go.uber.org/zap"
)

// DecodeError describes why a log could not be decoded.
type DecodeError struct {
	TransactionHash string
	LogIndex        uint
	Reason          string
	Err             error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("failed to decode log '%s' (index %d): %s", e.TransactionHash, e.LogIndex, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// LogParser decodes logs emitted by one contract with one ABI.
type LogParser struct {
	logger *zap.Logger
	abi    *abi.ABI
}

func NewLogParser(a *abi.ABI, l *zap.Logger) *LogParser {
	return &LogParser{
		logger: l,
		abi:    a,
	}
}

// EventTopics returns the topic0 of every non-anonymous event in the ABI.
func (lp *LogParser) EventTopics() []common.Hash {
	topics := make([]common.Hash, 0, len(lp.abi.Events))
	for _, event := range lp.abi.Events {
		if event.Anonymous {
			continue
		}
		topics = append(topics, event.ID)
	}
	return topics
}

func isHashedTopic(t abi.Type) bool {
	switch t.T {
	case abi.StringTy, abi.BytesTy, abi.SliceTy, abi.ArrayTy, abi.TupleTy:
		return true
	}
	return false
}

// DecodeLog decodes lg, which must have been emitted by expectedAddress.
func (lp *LogParser) DecodeLog(expectedAddress common.Address, lg types.Log) (*parser.ContractEvent, error) {
	txHash := lg.TxHash.Hex()
	decodeErr := func(reason string, err error) *DecodeError {
		return &DecodeError{TransactionHash: txHash, LogIndex: lg.Index, Reason: reason, Err: err}
	}

	if !utils.AreAddressesEqual(lg.Address.Hex(), expectedAddress.Hex()) {
		return nil, decodeErr(fmt.Sprintf("log emitted by '%s', expected '%s'", lg.Address.Hex(), expectedAddress.Hex()), nil)
	}
	if len(lg.Topics) == 0 {
		return nil, decodeErr("log has no topics", nil)
	}

	event, err := lp.abi.EventByID(lg.Topics[0])
	if err != nil {
		return nil, decodeErr(fmt.Sprintf("no event with id '%s'", lg.Topics[0].Hex()), err)
	}

	indexed := make(abi.Arguments, 0)
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(lg.Topics)-1 != len(indexed) {
		return nil, decodeErr(fmt.Sprintf("event '%s' expects %d indexed topics, log has %d", event.RawName, len(indexed), len(lg.Topics)-1), nil)
	}

	// Indexed reference types only carry the keccak hash of their value in the topic.
	hashedTopics := make(map[string]string)
	valueIndexed := make(abi.Arguments, 0, len(indexed))
	valueTopics := make([]common.Hash, 0, len(indexed))
	for i, input := range indexed {
		if isHashedTopic(input.Type) {
			hashedTopics[input.Name] = lg.Topics[i+1].Hex()
			continue
		}
		valueIndexed = append(valueIndexed, input)
		valueTopics = append(valueTopics, lg.Topics[i+1])
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if len(valueIndexed) > 0 {
		if err := abi.ParseTopicsIntoMap(values, valueIndexed, valueTopics); err != nil {
			return nil, decodeErr("failed to parse indexed topics", err)
		}
	}

	nonIndexed := event.Inputs.NonIndexed()
	if len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(values, lg.Data); err != nil {
			return nil, decodeErr(fmt.Sprintf("failed to unpack data for event '%s'", event.RawName), err)
		}
		// UnpackIntoMap ignores trailing bytes. A strict decode does not.
		if expected, ok := staticDataSize(nonIndexed); ok && len(lg.Data) != expected {
			return nil, decodeErr(fmt.Sprintf("event '%s' expects %d data bytes, log has %d", event.RawName, expected, len(lg.Data)), nil)
		}
	} else if len(lg.Data) > 0 {
		return nil, decodeErr(fmt.Sprintf("event '%s' has no data fields but log carries %d bytes", event.RawName, len(lg.Data)), nil)
	}

	args := parser.NewEventArgs()
	for i, input := range event.Inputs {
		name := argumentName(input, i)
		if input.Indexed {
			if hash, ok := hashedTopics[input.Name]; ok {
				args.Set(name, hash)
				continue
			}
		}
		v, ok := values[input.Name]
		if !ok {
			return nil, decodeErr(fmt.Sprintf("missing value for field '%s'", name), nil)
		}
		encoded, err := EncodeValue(input.Type, v)
		if err != nil {
			return nil, decodeErr(fmt.Sprintf("failed to encode field '%s'", name), err)
		}
		args.Set(name, encoded)
	}

	lp.logger.Sugar().Debugw("Decoded log",
		zap.String("eventName", event.RawName),
		zap.String("transactionHash", txHash),
		zap.Uint64("blockNumber", lg.BlockNumber),
		zap.Uint("logIndex", lg.Index),
	)

	return &parser.ContractEvent{
		Address:          lg.Address.Hex(),
		EventName:        event.RawName,
		Args:             args,
		BlockNumber:      numbers.NewLargeIntegerFromUint64(lg.BlockNumber),
		BlockHash:        lg.BlockHash.Hex(),
		TransactionHash:  txHash,
		TransactionIndex: numbers.NewLargeIntegerFromUint64(uint64(lg.TxIndex)),
		LogIndex:         numbers.NewLargeIntegerFromUint64(uint64(lg.Index)),
	}, nil
}

func argumentName(input abi.Argument, i int) string {
	if input.Name == "" {
		return fmt.Sprintf("arg%d", i)
	}
	return input.Name
}

// staticDataSize returns the exact ABI encoded size of args when none of them is dynamic.
func staticDataSize(args abi.Arguments) (int, bool) {
	size := 0
	for _, arg := range args {
		if isDynamic(arg.Type) {
			return 0, false
		}
		size += staticTypeSize(arg.Type)
	}
	return size, true
}

func isDynamic(t abi.Type) bool {
	switch t.T {
	case abi.StringTy, abi.BytesTy, abi.SliceTy:
		return true
	case abi.TupleTy:
		for _, elem := range t.TupleElems {
			if isDynamic(*elem) {
				return true
			}
		}
	case abi.ArrayTy:
		return isDynamic(*t.Elem)
	}
	return false
}

func staticTypeSize(t abi.Type) int {
	switch t.T {
	case abi.ArrayTy:
		return t.Size * staticTypeSize(*t.Elem)
	case abi.TupleTy:
		total := 0
		for _, elem := range t.TupleElems {
			total += staticTypeSize(*elem)
		}
		return total
	}
	return 32
}

// EncodeValue converts a value decoded for ABI type t into a transport-safe value.
// Every integer, whatever its width, becomes a base-10 string; addresses and byte
// values become 0x hex; tuples become ordered maps keyed by their ABI field names.
func EncodeValue(t abi.Type, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, errors.New("nil value")
	}
	return encodeReflect(t, reflect.ValueOf(v))
}

func encodeReflect(t abi.Type, rv reflect.Value) (interface{}, error) {
	if rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("nil value for type %s", t.String())
		}
	}

	switch t.T {
	case abi.IntTy, abi.UintTy:
		return encodeInteger(rv)
	case abi.BoolTy:
		if rv.Kind() != reflect.Bool {
			return nil, fmt.Errorf("expected bool, got %s", rv.Type())
		}
		return rv.Bool(), nil
	case abi.StringTy:
		if rv.Kind() != reflect.String {
			return nil, fmt.Errorf("expected string, got %s", rv.Type())
		}
		return rv.String(), nil
	case abi.AddressTy:
		addr, ok := rv.Interface().(common.Address)
		if !ok {
			return nil, fmt.Errorf("expected address, got %s", rv.Type())
		}
		return addr.Hex(), nil
	case abi.BytesTy, abi.FixedBytesTy, abi.HashTy, abi.FunctionTy, abi.FixedPointTy:
		return encodeBytes(rv)
	case abi.SliceTy, abi.ArrayTy:
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected list, got %s", rv.Type())
		}
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			encoded, err := encodeReflect(*t.Elem, rv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = encoded
		}
		return out, nil
	case abi.TupleTy:
		if rv.Kind() == reflect.Ptr {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct || rv.NumField() != len(t.TupleElems) {
			return nil, fmt.Errorf("expected tuple with %d fields, got %s", len(t.TupleElems), rv.Type())
		}
		out := parser.NewEventArgs()
		for i, elem := range t.TupleElems {
			name := fmt.Sprintf("arg%d", i)
			if i < len(t.TupleRawNames) && t.TupleRawNames[i] != "" {
				name = t.TupleRawNames[i]
			}
			encoded, err := encodeReflect(*elem, rv.Field(i))
			if err != nil {
				return nil, err
			}
			out.Set(name, encoded)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %s", t.String())
}

func encodeInteger(rv reflect.Value) (interface{}, error) {
	if b, ok := rv.Interface().(*big.Int); ok {
		return numbers.NewLargeInteger(b).String(), nil
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()).String(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()).String(), nil
	}
	return nil, fmt.Errorf("expected integer, got %s", rv.Type())
}

func encodeBytes(rv reflect.Value) (interface{}, error) {
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected bytes, got %s", rv.Type())
	}
	if rv.Type().Elem().Kind() != reflect.Uint8 {
		return nil, fmt.Errorf("expected bytes, got %s", rv.Type())
	}
	b := make([]byte, rv.Len())
	for i := range b {
		b[i] = byte(rv.Index(i).Uint())
	}
	return utils.ConvertBytesToString(b), nil
}
