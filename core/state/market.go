package state

import (
	"fmt"

	"nftmarket/native/market"
)

// OrderGet loads an open order.
func (m *Manager) OrderGet(id [20]byte) (*market.Order, bool, error) {
	order := new(market.Order)
	ok, err := m.KVGet(OrderKey(id), order)
	if err != nil || !ok {
		return nil, false, err
	}
	sanitized, err := market.SanitizeOrder(order)
	if err != nil {
		return nil, false, err
	}
	return sanitized, true, nil
}

// OrderPut persists an order record.
func (m *Manager) OrderPut(order *market.Order) error {
	sanitized, err := market.SanitizeOrder(order)
	if err != nil {
		return err
	}
	return m.KVPut(OrderKey(sanitized.ID), sanitized)
}

// OrderDelete removes an order record.
func (m *Manager) OrderDelete(id [20]byte) error {
	return m.KVDelete(OrderKey(id))
}

// AuctionGet loads an open auction.
func (m *Manager) AuctionGet(id [20]byte) (*market.Auction, bool, error) {
	auction := new(market.Auction)
	ok, err := m.KVGet(AuctionKey(id), auction)
	if err != nil || !ok {
		return nil, false, err
	}
	sanitized, err := market.SanitizeAuction(auction)
	if err != nil {
		return nil, false, err
	}
	return sanitized, true, nil
}

// AuctionPut persists an auction record.
func (m *Manager) AuctionPut(auction *market.Auction) error {
	sanitized, err := market.SanitizeAuction(auction)
	if err != nil {
		return err
	}
	return m.KVPut(AuctionKey(sanitized.ID), sanitized)
}

// AuctionDelete removes an auction record.
func (m *Manager) AuctionDelete(id [20]byte) error {
	return m.KVDelete(AuctionKey(id))
}

// VaultGet loads the vault controlled by authority.
func (m *Manager) VaultGet(authority [20]byte) (*market.Vault, bool, error) {
	vault := new(market.Vault)
	ok, err := m.KVGet(VaultKey(authority), vault)
	if err != nil || !ok {
		return nil, false, err
	}
	return vault.Clone(), true, nil
}

// VaultPut persists a vault record.
func (m *Manager) VaultPut(vault *market.Vault) error {
	if vault == nil {
		return fmt.Errorf("vault must not be nil")
	}
	return m.KVPut(VaultKey(vault.Authority), vault.Clone())
}

// VaultDelete removes a vault record.
func (m *Manager) VaultDelete(authority [20]byte) error {
	return m.KVDelete(VaultKey(authority))
}

// ListingGet returns the open listing for asset, if any.
func (m *Manager) ListingGet(asset [20]byte) ([20]byte, bool, error) {
	var listing [20]byte
	ok, err := m.KVGet(ListingKey(asset), &listing)
	if err != nil {
		return [20]byte{}, false, err
	}
	return listing, ok, nil
}

// ListingPut records listing as the open listing for asset.
func (m *Manager) ListingPut(asset, listing [20]byte) error {
	return m.KVPut(ListingKey(asset), listing)
}

// ListingDelete clears the listing index for asset.
func (m *Manager) ListingDelete(asset [20]byte) error {
	return m.KVDelete(ListingKey(asset))
}
