// Package numbers carries on-chain integers whose range exceeds what a float64 (or a
// JavaScript number) can hold exactly.
package numbers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// LargeInteger is an arbitrary precision integer that always crosses a transport boundary
// as a base-10 string.
type LargeInteger struct {
	v *big.Int
}

func NewLargeInteger(v *big.Int) LargeInteger {
	if v == nil {
		return LargeInteger{v: new(big.Int)}
	}
	return LargeInteger{v: new(big.Int).Set(v)}
}

func NewLargeIntegerFromUint64(v uint64) LargeInteger {
	return LargeInteger{v: new(big.Int).SetUint64(v)}
}

func NewLargeIntegerFromInt64(v int64) LargeInteger {
	return LargeInteger{v: big.NewInt(v)}
}

const (
	// MaxLiteralLength bounds the text accepted by ParseLargeInteger.
	MaxLiteralLength = 128
	// MaxExponent is the largest accepted exponent. 2^256 has 78 decimal digits.
	MaxExponent = 78
)

// ParseLargeInteger parses a decimal string. Exponent notation ("1e21") is accepted as long
// as the value is integral and the exponent is at most MaxExponent.
func ParseLargeInteger(s string) (LargeInteger, error) {
	if len(s) > MaxLiteralLength {
		return LargeInteger{}, fmt.Errorf("invalid integer: longer than %d characters", MaxLiteralLength)
	}
	if v, ok := new(big.Int).SetString(s, 10); ok {
		return LargeInteger{v: v}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return LargeInteger{}, fmt.Errorf("invalid integer '%s': %w", s, err)
	}
	if exp := d.Exponent(); exp > MaxExponent || exp < -MaxLiteralLength {
		return LargeInteger{}, fmt.Errorf("invalid integer '%s': exponent out of range", s)
	}
	if !d.IsInteger() {
		return LargeInteger{}, fmt.Errorf("invalid integer '%s': value has a fractional part", s)
	}
	return LargeInteger{v: d.BigInt()}, nil
}

// BigInt returns a copy of the underlying value.
func (li LargeInteger) BigInt() *big.Int {
	if li.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(li.v)
}

func (li LargeInteger) String() string {
	if li.v == nil {
		return "0"
	}
	return li.v.String()
}

func (li LargeInteger) Cmp(other LargeInteger) int {
	return li.BigInt().Cmp(other.BigInt())
}

func (li LargeInteger) IsUint64() bool {
	return li.BigInt().IsUint64()
}

func (li LargeInteger) Uint64() uint64 {
	return li.BigInt().Uint64()
}

func (li LargeInteger) MarshalJSON() ([]byte, error) {
	return json.Marshal(li.String())
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON number. Bare numbers
// are read from their literal text, never through float64.
func (li *LargeInteger) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("invalid integer: null")
	}

	var literal string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &literal); err != nil {
			return err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		literal = n.String()
	}

	parsed, err := ParseLargeInteger(literal)
	if err != nil {
		return err
	}
	*li = parsed
	return nil
}

func (li LargeInteger) MarshalCSV() (string, error) {
	return li.String(), nil
}
