package numbers

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LargeInteger(t *testing.T) {
	t.Run("Round trips values above 2^53 through JSON", func(t *testing.T) {
		values := []string{
			"0",
			"9007199254740993",
			"18446744073709551616",
			"115792089237316195423570985008687907853269984665640564039457584007913129639935",
			"-57896044618658097711785492504343953926634992332820282019728792003956564819968",
		}
		for _, v := range values {
			expected, ok := new(big.Int).SetString(v, 10)
			require.True(t, ok)

			b, err := json.Marshal(NewLargeInteger(expected))
			require.Nil(t, err)
			assert.Equal(t, `"`+v+`"`, string(b))

			var decoded LargeInteger
			require.Nil(t, json.Unmarshal(b, &decoded))
			assert.Equal(t, 0, decoded.BigInt().Cmp(expected), v)
		}
	})
	t.Run("Accepts bare JSON numbers without float rounding", func(t *testing.T) {
		var decoded LargeInteger
		require.Nil(t, json.Unmarshal([]byte(`9007199254740993`), &decoded))
		assert.Equal(t, "9007199254740993", decoded.String())
	})
	t.Run("Accepts integral exponent notation", func(t *testing.T) {
		var decoded LargeInteger
		require.Nil(t, json.Unmarshal([]byte(`1e21`), &decoded))
		assert.Equal(t, "1000000000000000000000", decoded.String())
	})
	t.Run("Rejects fractional values", func(t *testing.T) {
		var decoded LargeInteger
		assert.NotNil(t, json.Unmarshal([]byte(`1.5`), &decoded))
		assert.NotNil(t, json.Unmarshal([]byte(`"12.25"`), &decoded))
	})
	t.Run("Rejects garbage and null", func(t *testing.T) {
		var decoded LargeInteger
		assert.NotNil(t, json.Unmarshal([]byte(`"0xzz"`), &decoded))
		assert.NotNil(t, json.Unmarshal([]byte(`null`), &decoded))
		assert.NotNil(t, json.Unmarshal([]byte(`true`), &decoded))
	})
	t.Run("BigInt returns a copy", func(t *testing.T) {
		li := NewLargeIntegerFromUint64(10)
		li.BigInt().SetInt64(99)
		assert.Equal(t, "10", li.String())
	})
	t.Run("Rejects exponents that expand past 256 bits without expanding them", func(t *testing.T) {
		for _, v := range []string{`"1e50000000"`, `1e50000000`, `"0e-50000000"`, `"1e79"`} {
			start := time.Now()
			var decoded LargeInteger
			assert.NotNil(t, json.Unmarshal([]byte(v), &decoded), v)
			assert.Less(t, time.Since(start), 100*time.Millisecond, v)
		}
	})
	t.Run("Accepts the largest exponent", func(t *testing.T) {
		decoded, err := ParseLargeInteger("1e78")
		require.Nil(t, err)
		assert.Equal(t, "1"+strings.Repeat("0", 78), decoded.String())
	})
	t.Run("Rejects overlong literals", func(t *testing.T) {
		_, err := ParseLargeInteger(strings.Repeat("9", MaxLiteralLength+1))
		assert.NotNil(t, err)
	})
	t.Run("Zero value behaves as zero", func(t *testing.T) {
		var li LargeInteger
		assert.Equal(t, "0", li.String())
		b, err := json.Marshal(li)
		require.Nil(t, err)
		assert.Equal(t, `"0"`, string(b))
	})
}
