package simulation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/utils"
)

// BroadcastFile is the subset of a forge broadcast file (run-latest.json) that records
// deployments.
type BroadcastFile struct {
	Chain        uint64                 `json:"chain"`
	Transactions []BroadcastTransaction `json:"transactions"`
	Timestamp    uint64                 `json:"timestamp"`
	Commit       string                 `json:"commit"`
}

type BroadcastTransaction struct {
	Hash                string               `json:"hash"`
	TransactionType     string               `json:"transactionType"`
	ContractName        string               `json:"contractName"`
	ContractAddr        string               `json:"contractAddress"`
	AdditionalContracts []AdditionalContract `json:"additionalContracts,omitempty"`
}

// AdditionalContract is a contract created by a transaction in addition to its target.
// Older forge versions only report the address.
type AdditionalContract struct {
	TransactionType string `json:"transactionType"`
	ContractName    string `json:"contractName"`
	ContractAddr    string `json:"contractAddress"`
	Address         string `json:"address"`
}

// BroadcastFilePath returns where forge writes the latest run of script for chainId.
func BroadcastFilePath(contractsDir string, script string, chainId uint64) string {
	return filepath.Join(contractsDir, "broadcast", filepath.Base(script), strconv.FormatUint(chainId, 10), "run-latest.json")
}

func isCreate(transactionType string) bool {
	return transactionType == "CREATE" || transactionType == "CREATE2"
}

// ParseBroadcast returns one record per named contract created by the run.
func ParseBroadcast(contents []byte) ([]DeployedContractRecord, error) {
	var bf BroadcastFile
	if err := json.Unmarshal(contents, &bf); err != nil {
		return nil, errors.Wrap(err, "failed to decode broadcast file")
	}

	records := make([]DeployedContractRecord, 0)
	add := func(name, address string) error {
		if name == "" || address == "" {
			return nil
		}
		addr, err := utils.ParseAddress(address)
		if err != nil {
			return fmt.Errorf("contract '%s': %w", name, err)
		}
		records = append(records, DeployedContractRecord{Name: name, Address: addr})
		return nil
	}

	for _, tx := range bf.Transactions {
		if isCreate(tx.TransactionType) {
			if err := add(tx.ContractName, tx.ContractAddr); err != nil {
				return nil, err
			}
		}
		for _, ac := range tx.AdditionalContracts {
			address := ac.ContractAddr
			if address == "" {
				address = ac.Address
			}
			if err := add(ac.ContractName, address); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

func ReadBroadcastFile(path string) ([]DeployedContractRecord, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to read broadcast file '%s'", path))
	}
	return ParseBroadcast(contents)
}
