package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ParseAddress(t *testing.T) {
	t.Run("Accepts a mixed case address", func(t *testing.T) {
		a, err := ParseAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
		assert.Nil(t, err)
		assert.True(t, AreAddressesEqual("0x5fbdb2315678afecb367f032d93f642f64180aa3", a.Hex()))
	})
	t.Run("Rejects short or unprefixed input", func(t *testing.T) {
		for _, s := range []string{"", "0x1234", "5FbDB2315678afecb367f032d93F642f64180aa3", "0xZZbDB2315678afecb367f032d93F642f64180aa3"} {
			_, err := ParseAddress(s)
			assert.NotNil(t, err, s)
		}
	})
}

func Test_Map(t *testing.T) {
	out := Map([]int{1, 2, 3}, func(i int, idx uint64) uint64 {
		return uint64(i) * idx
	})
	assert.Equal(t, []uint64{0, 2, 6}, out)
}
