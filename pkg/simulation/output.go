package simulation

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// deployedContractPattern finds the report a deploy script prints for every contract it
	// deployed, e.g. "TankGame at address: 0x5FbDB2315678afecb367f032d93F642f64180aa3",
	// anywhere in a line.
	deployedContractPattern = regexp.MustCompile(`(\w+)\s+at\s+address:\s+(0x[0-9a-fA-F]{40})\b`)

	// strictDeployedContractPattern only accepts a line holding nothing but the report.
	strictDeployedContractPattern = regexp.MustCompile(`^\s*(\w+)\s+at\s+address:\s+(0x[0-9a-fA-F]{40})\s*$`)
)

const addressMarker = "at address:"

// ParseDeployOutput extracts one record per matching line of output. Other lines are
// ignored, unless strict is set and a line mentions an address without matching.
func ParseDeployOutput(output string, strict bool) ([]DeployedContractRecord, error) {
	records := make([]DeployedContractRecord, 0)

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	pattern := deployedContractPattern
	if strict {
		pattern = strictDeployedContractPattern
	}
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		match := pattern.FindStringSubmatch(line)
		if match == nil {
			if strict && strings.Contains(line, addressMarker) {
				return nil, fmt.Errorf("malformed deployment line %d: '%s'", lineNumber, strings.TrimSpace(line))
			}
			continue
		}
		records = append(records, DeployedContractRecord{
			Name:    match[1],
			Address: common.HexToAddress(match[2]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deployment output: %w", err)
	}
	return records, nil
}
