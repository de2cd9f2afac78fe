package simulation

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

const (
	fooAddress = "0xABCDabcdABCDabcdABCDabcdABCDabcdABCDabcd"
	barAddress = "0x1234567890123456789012345678901234567890"
)

func Test_ParseDeployOutput(t *testing.T) {
	t.Run("Returns one record per matching line", func(t *testing.T) {
		output := "Foo at address: " + fooAddress + "\n" +
			"Bar at address: " + barAddress + "\n" +
			"Script ran successfully.\n"

		records, err := ParseDeployOutput(output, false)
		assert.Nil(t, err)
		assert.Equal(t, []DeployedContractRecord{
			{Name: "Foo", Address: common.HexToAddress(fooAddress)},
			{Name: "Bar", Address: common.HexToAddress(barAddress)},
		}, records)
	})

	t.Run("Accepts forge console log indentation", func(t *testing.T) {
		output := "== Logs ==\n  TankGame at address: " + fooAddress + "  \r\n"
		records, err := ParseDeployOutput(output, false)
		assert.Nil(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, "TankGame", records[0].Name)
	})

	t.Run("Returns no records for empty output", func(t *testing.T) {
		records, err := ParseDeployOutput("", false)
		assert.Nil(t, err)
		assert.Len(t, records, 0)
	})

	t.Run("Lenient mode finds a report surrounded by other text", func(t *testing.T) {
		output := "Deployed TankGame at address: " + fooAddress + "\n" +
			"Bar at address: " + barAddress + " (proxy)\n"
		records, err := ParseDeployOutput(output, false)
		assert.Nil(t, err)
		assert.Equal(t, []DeployedContractRecord{
			{Name: "TankGame", Address: common.HexToAddress(fooAddress)},
			{Name: "Bar", Address: common.HexToAddress(barAddress)},
		}, records)
	})

	truncated := []string{
		"Foo at address: 0x1234",
		"Foo at address: " + fooAddress + "ab",
	}
	for _, line := range truncated {
		t.Run("Lenient mode ignores "+line, func(t *testing.T) {
			records, err := ParseDeployOutput(line+"\nBar at address: "+barAddress, false)
			assert.Nil(t, err)
			assert.Equal(t, []DeployedContractRecord{{Name: "Bar", Address: common.HexToAddress(barAddress)}}, records)
		})
	}

	malformed := append([]string{
		"Foo Bar at address: " + fooAddress,
		"Foo at address: " + fooAddress + " (proxy)",
	}, truncated...)
	for _, line := range malformed {
		t.Run("Strict mode rejects "+line, func(t *testing.T) {
			records, err := ParseDeployOutput(line+"\nBar at address: "+barAddress, true)
			assert.Nil(t, records)
			assert.NotNil(t, err)
		})
	}

	t.Run("Strict mode ignores lines without an address marker", func(t *testing.T) {
		records, err := ParseDeployOutput("Compiling 42 files\nFoo at address: "+fooAddress, true)
		assert.Nil(t, err)
		assert.Len(t, records, 1)
	})
}
