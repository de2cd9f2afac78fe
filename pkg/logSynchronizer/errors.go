package logSynchronizer

import (
	"fmt"
	"strconv"
	"strings"
)

// UnsupportedChainError is returned when the connected chain has no known contract deployment.
type UnsupportedChainError struct {
	ChainId   uint64
	Supported []uint64
}

func (e *UnsupportedChainError) Error() string {
	if len(e.Supported) == 0 {
		return fmt.Sprintf("no contract deployment known for chain id %d", e.ChainId)
	}
	ids := make([]string, 0, len(e.Supported))
	for _, id := range e.Supported {
		ids = append(ids, strconv.FormatUint(id, 10))
	}
	return fmt.Sprintf("no contract deployment known for chain id %d (known chains: %s)", e.ChainId, strings.Join(ids, ", "))
}

// ChainQueryError wraps a failure of the node to answer a query.
type ChainQueryError struct {
	Method string
	Err    error
}

func (e *ChainQueryError) Error() string {
	return fmt.Sprintf("chain query '%s' failed: %v", e.Method, e.Err)
}

func (e *ChainQueryError) Unwrap() error {
	return e.Err
}
