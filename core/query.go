package core

import (
	"errors"
	"math/big"

	nftstate "nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/market"
)

// ListingKind names the listing type occupying an asset.
type ListingKind string

const (
	ListingNone    ListingKind = ""
	ListingOrder   ListingKind = "order"
	ListingAuction ListingKind = "auction"
)

// Order returns the open order with id.
func (n *Node) Order(id [20]byte) (*market.Order, error) {
	order, ok, err := n.state.OrderGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, market.ErrOrderNotFound
	}
	return order, nil
}

// Auction returns the open auction with id.
func (n *Node) Auction(id [20]byte) (*market.Auction, error) {
	auction, ok, err := n.state.AuctionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, market.ErrAuctionNotFound
	}
	return auction, nil
}

// ListingByAsset reports which listing, if any, currently holds asset.
func (n *Node) ListingByAsset(asset [20]byte) (ListingKind, [20]byte, error) {
	id, ok, err := n.state.ListingGet(asset)
	if err != nil || !ok {
		return ListingNone, [20]byte{}, err
	}
	orderAuth, err := crypto.DeriveAuthority(crypto.NamespaceOrder, asset)
	if err != nil {
		return ListingNone, [20]byte{}, err
	}
	if id == orderAuth.Address {
		return ListingOrder, id, nil
	}
	return ListingAuction, id, nil
}

// Balance returns the committed currency balance of addr.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	return n.state.Balance(addr)
}

// Asset returns the registry entry for id.
func (n *Node) Asset(id [20]byte) (*types.Asset, bool, error) {
	return n.state.AssetGet(id)
}

// AssetHolder returns the account holding asset.
func (n *Node) AssetHolder(asset [20]byte) ([20]byte, bool, error) {
	return n.state.AssetHolder(asset)
}

// Credit adds amount to addr outside of any market operation. It backs
// genesis funding and development faucets.
func (n *Node) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	release := n.locks.Lock(addr)
	defer release()
	for attempt := 0; ; attempt++ {
		spec := n.state.Copy()
		bal, err := spec.Balance(addr)
		if err != nil {
			return err
		}
		if err := spec.SetBalance(addr, new(big.Int).Add(bal, amount)); err != nil {
			return err
		}
		err = spec.Commit()
		if err == nil || !errors.Is(err, nftstate.ErrConflict) || attempt >= n.maxRetries {
			return err
		}
	}
}
