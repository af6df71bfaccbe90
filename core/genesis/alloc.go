package genesis

import (
	"fmt"
	"math/big"
	"strings"
)

// Account is one initial currency allocation.
type Account struct {
	Address string `toml:"Address" json:"address"`
	Balance string `toml:"Balance" json:"balance"`
}

// Allocation is a decoded, validated initial allocation.
type Allocation struct {
	Address [20]byte
	Balance *big.Int
}

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	SetBalance(addr [20]byte, amount *big.Int) error
}

var appliedKey = []byte("genesis/applied")

// Parse validates the configured accounts. Duplicate addresses are rejected.
func Parse(accounts []Account) ([]Allocation, error) {
	seen := make(map[[20]byte]struct{}, len(accounts))
	out := make([]Allocation, 0, len(accounts))
	for i, acc := range accounts {
		addr, err := ParseBech32Account(strings.TrimSpace(acc.Address))
		if err != nil {
			return nil, fmt.Errorf("genesis account %d: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("genesis account %d: duplicate address %s", i, acc.Address)
		}
		seen[addr] = struct{}{}
		balance, ok := new(big.Int).SetString(strings.TrimSpace(acc.Balance), 10)
		if !ok || balance.Sign() < 0 {
			return nil, fmt.Errorf("genesis account %d: invalid balance %q", i, acc.Balance)
		}
		out = append(out, Allocation{Address: addr, Balance: balance})
	}
	return out, nil
}

// Apply writes the allocations once. Later calls against the same state are
// no-ops so restarting the daemon never re-funds accounts.
func Apply(st ledgerState, allocs []Allocation) (bool, error) {
	var applied bool
	if _, err := st.KVGet(appliedKey, &applied); err != nil {
		return false, err
	}
	if applied {
		return false, nil
	}
	for _, alloc := range allocs {
		if err := st.SetBalance(alloc.Address, alloc.Balance); err != nil {
			return false, fmt.Errorf("genesis: fund %x: %w", alloc.Address, err)
		}
	}
	if err := st.KVPut(appliedKey, true); err != nil {
		return false, err
	}
	return true, nil
}
