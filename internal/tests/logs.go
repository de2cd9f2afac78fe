package tests

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// GetTankGameAbi parses the ABI of the test artifact.
func GetTankGameAbi() (*abi.ABI, error) {
	abiJson, err := GetTankGameAbiJson()
	if err != nil {
		return nil, err
	}
	a, err := abi.JSON(strings.NewReader(abiJson))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Word left pads v to a 32 byte ABI word.
func Word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

// AddressTopic encodes an indexed address.
func AddressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

// NewEventLog builds a log for the named event of contractAbi. topics are the indexed
// arguments, without topic0.
func NewEventLog(contractAbi *abi.ABI, eventName string, address common.Address, blockNumber uint64, logIndex uint, topics []common.Hash, data ...[]byte) *types.Log {
	event := contractAbi.Events[eventName]
	payload := make([]byte, 0)
	for _, d := range data {
		payload = append(payload, d...)
	}
	blockHash := crypto.Keccak256Hash(new(big.Int).SetUint64(blockNumber).Bytes())
	return &types.Log{
		Address:     address,
		Topics:      append([]common.Hash{event.ID}, topics...),
		Data:        payload,
		BlockNumber: blockNumber,
		BlockHash:   blockHash,
		TxHash:      crypto.Keccak256Hash(blockHash.Bytes(), big.NewInt(int64(logIndex)).Bytes()),
		TxIndex:     0,
		Index:       logIndex,
	}
}
