package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/types/numbers"
)

func Test_WriteCsv(t *testing.T) {
	t.Run("Writes a header and one row per event", func(t *testing.T) {
		args := NewEventArgs()
		args.Set("player", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
		args.Set("amount", "18446744073709551617")

		events := []*ContractEvent{
			{
				Address:          "0x5FbDB2315678afecb367f032d93F642f64180aa3",
				EventName:        "Claim",
				Args:             args,
				BlockNumber:      numbers.NewLargeIntegerFromUint64(7),
				BlockHash:        "0xaa",
				TransactionHash:  "0xbb",
				TransactionIndex: numbers.NewLargeIntegerFromUint64(1),
				LogIndex:         numbers.NewLargeIntegerFromUint64(2),
			},
			{
				Address:     "0x5FbDB2315678afecb367f032d93F642f64180aa3",
				EventName:   "GameStarted",
				BlockNumber: numbers.NewLargeIntegerFromUint64(8),
			},
		}

		buf := &bytes.Buffer{}
		require.Nil(t, WriteCsv(events, buf))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "blockNumber,transactionIndex,logIndex,eventName,address,transactionHash,blockHash,args", lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "7,1,2,Claim,0x5FbDB2315678afecb367f032d93F642f64180aa3,0xbb,0xaa,"))
		assert.Contains(t, lines[1], `""amount"":""18446744073709551617""`)
		assert.Equal(t, "8,0,0,GameStarted,0x5FbDB2315678afecb367f032d93F642f64180aa3,,,{}", lines[2])
	})
	t.Run("Writes only a header for no events", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.Nil(t, WriteCsv([]*ContractEvent{}, buf))
		assert.Equal(t, "blockNumber,transactionIndex,logIndex,eventName,address,transactionHash,blockHash,args", strings.TrimSpace(buf.String()))
	})
}
