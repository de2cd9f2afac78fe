// Package utils provides utility functions and constants for common operations
// throughout the application.
package utils

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AreAddressesEqual compares two Ethereum addresses for equality, ignoring case.
func AreAddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ConvertBytesToString converts a byte array to a hexadecimal string with 0x prefix.
func ConvertBytesToString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// ParseAddress accepts a 0x-prefixed, 20 byte hex address. Unlike common.HexToAddress it
// refuses anything that is not exactly an address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return common.Address{}, fmt.Errorf("invalid address '%s'", s)
	}
	return common.HexToAddress(s), nil
}

// Map applies f to every element of the slice.
func Map[A any, B any](coll []A, f func(A, uint64) B) []B {
	out := make([]B, len(coll))
	for i, item := range coll {
		out[i] = f(item, uint64(i))
	}
	return out
}
