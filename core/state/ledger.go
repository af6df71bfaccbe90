package state

import (
	"errors"
	"fmt"
	"math/big"

	"nftmarket/core/types"
	"nftmarket/crypto"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrInvalidAmount       = errors.New("ledger: invalid amount")
	ErrAssetNotFound       = errors.New("ledger: asset not found")
	ErrNotHolder           = errors.New("ledger: sender does not hold asset")
	ErrAuthorityRequired   = errors.New("ledger: authority proof required")
)

// authorize rejects debits from a vault authority unless the proof derives
// that authority. Other accounts are assumed authenticated by the caller.
func (m *Manager) authorize(from [20]byte, auth *crypto.AuthorityProof) error {
	if auth != nil {
		return crypto.VerifyAuthority(*auth, from)
	}
	_, isVault, err := m.VaultGet(from)
	if err != nil {
		return err
	}
	if isVault {
		return ErrAuthorityRequired
	}
	return nil
}

// Balance returns the currency balance of addr.
func (m *Manager) Balance(addr [20]byte) (*big.Int, error) {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// TransferCurrency moves amount from one account to another.
func (m *Manager) TransferCurrency(from, to [20]byte, amount *big.Int, auth *crypto.AuthorityProof) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := m.authorize(from, auth); err != nil {
		return err
	}
	fromAcc, err := m.GetAccount(from[:])
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromAcc.Balance, amount)
	}
	if from == to {
		return nil
	}
	toAcc, err := m.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := m.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return m.PutAccount(to[:], toAcc)
}

// AssetHolder returns the account holding the single unit of asset.
func (m *Manager) AssetHolder(asset [20]byte) ([20]byte, bool, error) {
	entry, ok, err := m.AssetGet(asset)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	return entry.Holder, true, nil
}

// TransferAsset moves the asset unit from its current holder to another
// account.
func (m *Manager) TransferAsset(asset, from, to [20]byte, auth *crypto.AuthorityProof) error {
	entry, ok, err := m.AssetGet(asset)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssetNotFound
	}
	if entry.Holder != from {
		return ErrNotHolder
	}
	if err := m.authorize(from, auth); err != nil {
		return err
	}
	entry.Holder = to
	return m.AssetPut(entry)
}

// AssetGet returns the registry entry for id.
func (m *Manager) AssetGet(id [20]byte) (*types.Asset, bool, error) {
	entry := new(types.Asset)
	ok, err := m.KVGet(AssetKey(id), entry)
	if err != nil || !ok {
		return nil, false, err
	}
	return entry, true, nil
}

// AssetPut stores a registry entry.
func (m *Manager) AssetPut(asset *types.Asset) error {
	if asset == nil {
		return fmt.Errorf("asset must not be nil")
	}
	return m.KVPut(AssetKey(asset.ID), asset.Clone())
}

// RegistryNonce returns the number of assets creator has minted.
func (m *Manager) RegistryNonce(creator [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.KVGet(RegistryNonceKey(creator), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// SetRegistryNonce records the registry nonce of creator.
func (m *Manager) SetRegistryNonce(creator [20]byte, nonce uint64) error {
	return m.KVPut(RegistryNonceKey(creator), nonce)
}
