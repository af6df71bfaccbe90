package state

import (
	"fmt"
	"math/big"

	"nftmarket/core/types"
)

// GetAccount returns the account stored under addr. Unknown accounts are
// returned with a zero balance.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	key, err := accountKeyFromBytes(addr)
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	ok, err := m.KVGet(key, account)
	if err != nil {
		return nil, err
	}
	if !ok || account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}

// PutAccount persists the account under addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	key, err := accountKeyFromBytes(addr)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("account must not be nil")
	}
	clone := account.Clone()
	if clone.Balance.Sign() < 0 {
		return fmt.Errorf("account balance must not be negative")
	}
	return m.KVPut(key, clone)
}

// SetBalance overwrites the currency balance of addr.
func (m *Manager) SetBalance(addr [20]byte, amount *big.Int) error {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return err
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	account.Balance = new(big.Int).Set(amount)
	return m.PutAccount(addr[:], account)
}

func accountKeyFromBytes(addr []byte) ([]byte, error) {
	if len(addr) != 20 {
		return nil, fmt.Errorf("address must be 20 bytes, got %d", len(addr))
	}
	var fixed [20]byte
	copy(fixed[:], addr)
	return AccountKey(fixed), nil
}
