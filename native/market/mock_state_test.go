package market

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"nftmarket/core/types"
	"nftmarket/crypto"
)

var (
	errMockInsufficient = errors.New("mock: insufficient balance")
	errMockNotHolder    = errors.New("mock: sender does not hold asset")
	errMockNoProof      = errors.New("mock: authority proof required")
)

type mockState struct {
	balances map[[20]byte]*big.Int
	assets   map[[20]byte]*types.Asset
	orders   map[[20]byte]*Order
	auctions map[[20]byte]*Auction
	vaults   map[[20]byte]*Vault
	listings map[[20]byte][20]byte
	// failTo injects a collaborator failure for currency credited to the key.
	failTo map[[20]byte]error
}

func newMockState() *mockState {
	return &mockState{
		balances: make(map[[20]byte]*big.Int),
		assets:   make(map[[20]byte]*types.Asset),
		orders:   make(map[[20]byte]*Order),
		auctions: make(map[[20]byte]*Auction),
		vaults:   make(map[[20]byte]*Vault),
		listings: make(map[[20]byte][20]byte),
		failTo:   make(map[[20]byte]error),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) fund(addr [20]byte, amt int64) {
	m.balances[addr] = new(big.Int).Add(m.balance(addr), big.NewInt(amt))
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	if bal, ok := m.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (m *mockState) mint(id, creator, minter [20]byte) {
	m.assets[id] = &types.Asset{ID: id, Creator: creator, Minter: minter, Holder: creator}
}

func (m *mockState) checkAuthority(from [20]byte, auth *crypto.AuthorityProof) error {
	if _, isVault := m.vaults[from]; !isVault {
		return nil
	}
	if auth == nil {
		return errMockNoProof
	}
	return crypto.VerifyAuthority(*auth, from)
}

func (m *mockState) Balance(addr [20]byte) (*big.Int, error) {
	return m.balance(addr), nil
}

func (m *mockState) TransferCurrency(from, to [20]byte, amt *big.Int, auth *crypto.AuthorityProof) error {
	if err := m.checkAuthority(from, auth); err != nil {
		return err
	}
	if err, ok := m.failTo[to]; ok {
		return err
	}
	if m.balance(from).Cmp(amt) < 0 {
		return errMockInsufficient
	}
	m.balances[from] = new(big.Int).Sub(m.balance(from), amt)
	m.balances[to] = new(big.Int).Add(m.balance(to), amt)
	return nil
}

func (m *mockState) AssetHolder(asset [20]byte) ([20]byte, bool, error) {
	entry, ok := m.assets[asset]
	if !ok {
		return [20]byte{}, false, nil
	}
	return entry.Holder, true, nil
}

func (m *mockState) TransferAsset(asset, from, to [20]byte, auth *crypto.AuthorityProof) error {
	if err := m.checkAuthority(from, auth); err != nil {
		return err
	}
	entry, ok := m.assets[asset]
	if !ok || entry.Holder != from {
		return errMockNotHolder
	}
	entry.Holder = to
	return nil
}

func (m *mockState) AssetGet(id [20]byte) (*types.Asset, bool, error) {
	entry, ok := m.assets[id]
	if !ok {
		return nil, false, nil
	}
	return entry.Clone(), true, nil
}

func (m *mockState) OrderGet(id [20]byte) (*Order, bool, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, false, nil
	}
	return o.Clone(), true, nil
}

func (m *mockState) OrderPut(o *Order) error {
	sanitized, err := SanitizeOrder(o)
	if err != nil {
		return err
	}
	m.orders[sanitized.ID] = sanitized
	return nil
}

func (m *mockState) OrderDelete(id [20]byte) error {
	delete(m.orders, id)
	return nil
}

func (m *mockState) AuctionGet(id [20]byte) (*Auction, bool, error) {
	a, ok := m.auctions[id]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func (m *mockState) AuctionPut(a *Auction) error {
	sanitized, err := SanitizeAuction(a)
	if err != nil {
		return err
	}
	m.auctions[sanitized.ID] = sanitized
	return nil
}

func (m *mockState) AuctionDelete(id [20]byte) error {
	delete(m.auctions, id)
	return nil
}

func (m *mockState) VaultGet(authority [20]byte) (*Vault, bool, error) {
	v, ok := m.vaults[authority]
	if !ok {
		return nil, false, nil
	}
	return v.Clone(), true, nil
}

func (m *mockState) VaultPut(v *Vault) error {
	if v == nil {
		return fmt.Errorf("nil vault")
	}
	m.vaults[v.Authority] = v.Clone()
	return nil
}

func (m *mockState) VaultDelete(authority [20]byte) error {
	delete(m.vaults, authority)
	return nil
}

func (m *mockState) ListingGet(asset [20]byte) ([20]byte, bool, error) {
	id, ok := m.listings[asset]
	return id, ok, nil
}

func (m *mockState) ListingPut(asset, listing [20]byte) error {
	m.listings[asset] = listing
	return nil
}

func (m *mockState) ListingDelete(asset [20]byte) error {
	delete(m.listings, asset)
	return nil
}
