package parser

import (
	"encoding/json"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/types/numbers"
)

// ContractEventRow is the flat rendering of a ContractEvent. Args are kept as a JSON object.
type ContractEventRow struct {
	BlockNumber      numbers.LargeInteger `csv:"blockNumber"`
	TransactionIndex numbers.LargeInteger `csv:"transactionIndex"`
	LogIndex         numbers.LargeInteger `csv:"logIndex"`
	EventName        string               `csv:"eventName"`
	Address          string               `csv:"address"`
	TransactionHash  string               `csv:"transactionHash"`
	BlockHash        string               `csv:"blockHash"`
	Args             string               `csv:"args"`
}

func ToContractEventRows(events []*ContractEvent) ([]*ContractEventRow, error) {
	rows := make([]*ContractEventRow, 0, len(events))
	for _, event := range events {
		args := []byte("{}")
		if event.Args != nil {
			var err error
			args, err = json.Marshal(event.Args)
			if err != nil {
				return nil, errors.Wrap(err, "failed to marshal event args")
			}
		}
		rows = append(rows, &ContractEventRow{
			BlockNumber:      event.BlockNumber,
			TransactionIndex: event.TransactionIndex,
			LogIndex:         event.LogIndex,
			EventName:        event.EventName,
			Address:          event.Address,
			TransactionHash:  event.TransactionHash,
			BlockHash:        event.BlockHash,
			Args:             string(args),
		})
	}
	return rows, nil
}

// WriteCsv writes events as CSV with a header row.
func WriteCsv(events []*ContractEvent, out io.Writer) error {
	rows, err := ToContractEventRows(events)
	if err != nil {
		return err
	}
	return gocsv.Marshal(rows, out)
}
