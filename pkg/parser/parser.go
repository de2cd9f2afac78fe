// Package parser provides the decoded, transport-safe representation of contract events.
package parser

import (
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/types/numbers"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// EventArgs maps event field names to transport-safe values, in ABI input order.
//
// Values are one of: string (decimal integers, hex addresses/bytes, text), bool,
// []interface{} (arrays) or *EventArgs (tuples).
type EventArgs = orderedmap.OrderedMap[string, interface{}]

func NewEventArgs() *EventArgs {
	return orderedmap.New[string, interface{}]()
}

// ContractEvent is one decoded log emitted by the tracked contract. It never holds a value
// that cannot be represented exactly in JSON.
type ContractEvent struct {
	// Address is the checksummed address of the emitting contract
	Address string `json:"address"`
	// EventName is the ABI name of the matched event
	EventName string `json:"eventName"`
	// Args holds the decoded event fields
	Args *EventArgs `json:"args"`
	// BlockNumber is the block the log was mined in
	BlockNumber numbers.LargeInteger `json:"blockNumber"`
	// BlockHash is the hash of that block
	BlockHash string `json:"blockHash"`
	// TransactionHash identifies the emitting transaction
	TransactionHash string `json:"transactionHash"`
	// TransactionIndex is the position of the transaction in the block
	TransactionIndex numbers.LargeInteger `json:"transactionIndex"`
	// LogIndex is the position of the log in the block
	LogIndex numbers.LargeInteger `json:"logIndex"`
}
