package market

import (
	"errors"
	"fmt"
	"math/big"

	"nftmarket/crypto"
)

var (
	errAssetUnknown    = errors.New("asset not registered")
	errVaultHoldsAsset = errors.New("vault still holds the asset")
	errVaultHoldsFunds = errors.New("vault still holds escrowed currency")
	errVaultMissing    = errors.New("vault not found")
	errVaultShortfall  = errors.New("vault balance below withdrawal")
)

// openVault derives the listing authority for asset and charges the storage
// deposit from payer. The vault is persisted before any value moves into it
// so the ledger recognises the authority account.
func (e *Engine) openVault(ns crypto.Namespace, asset, payer [20]byte, space uint64) (*Vault, error) {
	auth, err := crypto.DeriveAuthority(ns, asset)
	if err != nil {
		return nil, err
	}
	if _, exists, err := e.state.VaultGet(auth.Address); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrListingExists
	}
	vault := &Vault{
		Authority: auth.Address,
		Namespace: ns,
		Asset:     asset,
		Bump:      auth.Bump,
		Balance:   big.NewInt(0),
		Deposit:   e.deposit(space),
	}
	if err := e.state.VaultPut(vault); err != nil {
		return nil, err
	}
	if vault.Deposit.Sign() > 0 {
		if err := e.state.TransferCurrency(payer, vault.Authority, vault.Deposit, nil); err != nil {
			return nil, stepError(ErrDepositTransferFailed, err)
		}
	}
	return vault, nil
}

func (e *Engine) loadVault(authority [20]byte) (*Vault, error) {
	vault, ok, err := e.state.VaultGet(authority)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("market: %w", errVaultMissing)
	}
	return vault, nil
}

func (v *Vault) proof() crypto.AuthorityProof {
	return crypto.AuthorityProof{Namespace: v.Namespace, Asset: v.Asset, Bump: v.Bump}
}

// depositAsset moves the asset unit from holder into the vault.
func (e *Engine) depositAsset(v *Vault, holder [20]byte) error {
	return e.state.TransferAsset(v.Asset, holder, v.Authority, nil)
}

// withdrawAsset releases the asset unit from the vault to recipient.
func (e *Engine) withdrawAsset(v *Vault, proof crypto.AuthorityProof, recipient [20]byte) error {
	if err := crypto.VerifyAuthority(proof, v.Authority); err != nil {
		return err
	}
	return e.state.TransferAsset(v.Asset, v.Authority, recipient, &proof)
}

// depositCurrency escrows amt from payer into the vault balance.
func (e *Engine) depositCurrency(v *Vault, payer [20]byte, amt uint64) error {
	if amt == 0 {
		return nil
	}
	if err := e.state.TransferCurrency(payer, v.Authority, amount(amt), nil); err != nil {
		return err
	}
	v.Balance = new(big.Int).Add(cloneBigInt(v.Balance), amount(amt))
	return e.state.VaultPut(v)
}

// withdrawCurrency pays amt out of the vault balance to recipient.
func (e *Engine) withdrawCurrency(v *Vault, proof crypto.AuthorityProof, recipient [20]byte, amt uint64) error {
	if amt == 0 {
		return nil
	}
	if err := crypto.VerifyAuthority(proof, v.Authority); err != nil {
		return err
	}
	if cloneBigInt(v.Balance).Cmp(amount(amt)) < 0 {
		return errVaultShortfall
	}
	if err := e.state.TransferCurrency(v.Authority, recipient, amount(amt), &proof); err != nil {
		return err
	}
	v.Balance = new(big.Int).Sub(v.Balance, amount(amt))
	return e.state.VaultPut(v)
}

// closeVault is terminal: it requires an empty vault, pays the storage
// deposit to recipient and removes the vault record.
func (e *Engine) closeVault(v *Vault, proof crypto.AuthorityProof, recipient [20]byte) (*big.Int, error) {
	if err := crypto.VerifyAuthority(proof, v.Authority); err != nil {
		return nil, stepError(ErrTokenCloseFailed, err)
	}
	holder, held, err := e.state.AssetHolder(v.Asset)
	if err != nil {
		return nil, stepError(ErrTokenCloseFailed, err)
	}
	if held && holder == v.Authority {
		return nil, stepError(ErrTokenCloseFailed, errVaultHoldsAsset)
	}
	if cloneBigInt(v.Balance).Sign() != 0 {
		return nil, stepError(ErrTokenCloseFailed, errVaultHoldsFunds)
	}
	reclaimed := cloneBigInt(v.Deposit)
	if reclaimed.Sign() > 0 {
		if err := e.state.TransferCurrency(v.Authority, recipient, reclaimed, &proof); err != nil {
			return nil, stepError(ErrTokenCloseFailed, err)
		}
	}
	if err := e.state.VaultDelete(v.Authority); err != nil {
		return nil, stepError(ErrTokenCloseFailed, err)
	}
	return reclaimed, nil
}
