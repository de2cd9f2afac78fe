package deployments

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/config"
	"github.com/tank-turn-tactics/tankgame-sidecar/internal/logger"
	"go.uber.org/zap"
)

func setup(t *testing.T) *zap.Logger {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)
	return l
}

func Test_Table(t *testing.T) {
	l := setup(t)

	t.Run("Resolves the default table", func(t *testing.T) {
		table, err := NewTable(config.DefaultDeploymentAddresses, l)
		assert.Nil(t, err)

		addr, ok := table.Resolve(config.ChainId_Foundry)
		assert.True(t, ok)
		assert.Equal(t, common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"), addr)

		_, ok = table.Resolve(42161)
		assert.False(t, ok)
		assert.Equal(t, []uint64{1, 5, 31337}, table.ChainIds())
	})

	t.Run("Rejects an invalid address", func(t *testing.T) {
		_, err := NewTable(map[uint64]string{1: "0x1234"}, l)
		assert.NotNil(t, err)
	})

	t.Run("Override takes precedence until cleared", func(t *testing.T) {
		table, err := NewTable(config.DefaultDeploymentAddresses, l)
		assert.Nil(t, err)

		deployed := common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
		table.SetOverride(config.ChainId_Foundry, deployed)
		addr, _ := table.Resolve(config.ChainId_Foundry)
		assert.Equal(t, deployed, addr)

		table.ClearOverride(config.ChainId_Foundry)
		addr, _ = table.Resolve(config.ChainId_Foundry)
		assert.Equal(t, common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3"), addr)
	})

	t.Run("Loads entries from a file", func(t *testing.T) {
		table, err := NewTable(config.DefaultDeploymentAddresses, l)
		assert.Nil(t, err)

		path := filepath.Join(t.TempDir(), "deployments.yaml")
		contents := "deployments:\n  - chainId: 17000\n    address: \"0x00000000000000000000000000000000000000aa\"\n  - chainId: 1\n    address: \"0x00000000000000000000000000000000000000bb\"\n"
		assert.Nil(t, os.WriteFile(path, []byte(contents), 0644))

		assert.Nil(t, table.LoadFile(path))
		addr, ok := table.Resolve(17000)
		assert.True(t, ok)
		assert.Equal(t, common.HexToAddress("0xaa"), addr)
		addr, _ = table.Resolve(1)
		assert.Equal(t, common.HexToAddress("0xbb"), addr)
	})

	t.Run("Fails on a missing file", func(t *testing.T) {
		table, err := NewTable(nil, l)
		assert.Nil(t, err)
		assert.NotNil(t, table.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
	})
}
