// Package deployments resolves the TankGame contract address for a chain id.
package deployments

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/tank-turn-tactics/tankgame-sidecar/pkg/utils"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DeploymentsFile is the on-disk shape of an address override file:
//
//	deployments:
//	  - chainId: 31337
//	    address: "0x5fbdb2315678afecb367f032d93f642f64180aa3"
type DeploymentsFile struct {
	Deployments []DeploymentEntry `yaml:"deployments"`
}

type DeploymentEntry struct {
	ChainId uint64 `yaml:"chainId"`
	Address string `yaml:"address"`
}

// Table is a chain id -> contract address lookup. A runtime override (set by a freshly
// deployed simulation) takes precedence over the static table.
type Table struct {
	logger *zap.Logger

	mu        sync.RWMutex
	addresses map[uint64]common.Address
	overrides map[uint64]common.Address
}

// NewTable builds a table from chain id -> hex address pairs. Every address must be valid.
func NewTable(addresses map[uint64]string, l *zap.Logger) (*Table, error) {
	t := &Table{
		logger:    l,
		addresses: make(map[uint64]common.Address, len(addresses)),
		overrides: make(map[uint64]common.Address),
	}
	for chainId, address := range addresses {
		if err := t.Add(chainId, address); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add inserts or replaces a static entry.
func (t *Table) Add(chainId uint64, address string) error {
	addr, err := utils.ParseAddress(address)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("invalid deployment address for chain %d", chainId))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addresses[chainId] = addr
	return nil
}

// LoadFile merges the entries of a YAML deployments file into the table.
func (t *Table) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to open deployments file '%s'", path))
	}
	defer file.Close()

	var df DeploymentsFile
	if err := yaml.NewDecoder(file).Decode(&df); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to decode deployments file '%s'", path))
	}
	for _, entry := range df.Deployments {
		if err := t.Add(entry.ChainId, entry.Address); err != nil {
			return err
		}
	}
	t.logger.Sugar().Infow("Loaded deployments file",
		zap.String("path", path),
		zap.Int("entries", len(df.Deployments)),
	)
	return nil
}

// SetOverride replaces the address for chainId until ClearOverride is called.
func (t *Table) SetOverride(chainId uint64, address common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides[chainId] = address
	t.logger.Sugar().Infow("Set deployment override",
		zap.Uint64("chainId", chainId),
		zap.String("address", address.Hex()),
	)
}

func (t *Table) ClearOverride(chainId uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.overrides, chainId)
}

// Resolve returns the address for chainId and whether one is known.
func (t *Table) Resolve(chainId uint64) (common.Address, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if addr, ok := t.overrides[chainId]; ok {
		return addr, true
	}
	addr, ok := t.addresses[chainId]
	return addr, ok
}

// ChainIds lists every chain with an address, ascending.
func (t *Table) ChainIds() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[uint64]struct{}, len(t.addresses)+len(t.overrides))
	for id := range t.addresses {
		seen[id] = struct{}{}
	}
	for id := range t.overrides {
		seen[id] = struct{}{}
	}
	ids := make([]uint64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
