package market

import (
	"nftmarket/crypto"
)

// CreateOrder lists asset for sale at a fixed price. The creator pays the
// platform fee and storage deposit, then the asset moves into the order
// vault.
func (e *Engine) CreateOrder(creator, asset [20]byte, memo string, price uint64) (*Order, error) {
	if err := e.guard(moduleOrder); err != nil {
		return nil, err
	}
	if err := validateMemo(memo); err != nil {
		return nil, err
	}
	if err := e.ensureTreasuryConfigured(); err != nil {
		return nil, err
	}
	if err := e.ensureUnlisted(asset); err != nil {
		return nil, err
	}
	fee, err := e.payPlatformFee(creator, price)
	if err != nil {
		return nil, err
	}
	vault, err := e.openVault(crypto.NamespaceOrder, asset, creator, OrderSpace(memo))
	if err != nil {
		return nil, err
	}
	if err := e.depositAsset(vault, creator); err != nil {
		return nil, stepError(ErrTokenTransferFailed, err)
	}
	order := &Order{
		ID:        vault.Authority,
		Creator:   creator,
		Asset:     asset,
		Memo:      memo,
		Price:     price,
		Bump:      vault.Bump,
		CreatedAt: uint64(e.now()),
		Status:    OrderOpen,
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	if err := e.state.ListingPut(asset, order.ID); err != nil {
		return nil, err
	}
	e.emit(NewOrderCreatedEvent(order, fee, vault.Deposit))
	return order.Clone(), nil
}

func (e *Engine) loadOrder(id [20]byte) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	order, ok, err := e.state.OrderGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// CancelOrder returns the asset to the creator and closes the order. Only
// the creator may cancel.
func (e *Engine) CancelOrder(caller, id [20]byte) (*Order, error) {
	if err := e.guard(moduleOrder); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if caller != order.Creator {
		return nil, ErrUnauthorized
	}
	vault, err := e.loadVault(order.ID)
	if err != nil {
		return nil, stepError(ErrTokenCloseFailed, err)
	}
	proof := order.Proof()
	if err := e.withdrawAsset(vault, proof, order.Creator); err != nil {
		return nil, stepError(ErrTokenTransferFailed2, err)
	}
	reclaimed, err := e.closeVault(vault, proof, order.Creator)
	if err != nil {
		return nil, err
	}
	if err := e.retireOrder(order); err != nil {
		return nil, err
	}
	order.Status = OrderCancelled
	e.emit(NewOrderCancelledEvent(order, reclaimed))
	return order.Clone(), nil
}

// FillOrder settles the order with buyer. Royalty goes to the asset's
// royalty recipient and the remainder to the creator before the asset is
// delivered.
func (e *Engine) FillOrder(buyer, id [20]byte, royaltyPercent uint16) (*Order, error) {
	if err := e.guard(moduleOrder); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	split, err := ComputeSplit(order.Price, royaltyPercent)
	if err != nil {
		return nil, err
	}
	balance, err := e.state.Balance(buyer)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount(order.Price)) < 0 {
		return nil, ErrInsufficientMoney
	}
	vault, err := e.loadVault(order.ID)
	if err != nil {
		return nil, stepError(ErrTokenCloseFailed, err)
	}
	if split.Royalty > 0 {
		recipient, err := e.royaltyRecipient(order.Asset)
		if err != nil {
			return nil, err
		}
		if err := e.state.TransferCurrency(buyer, recipient, amount(split.Royalty), nil); err != nil {
			return nil, stepError(ErrRoyaltyTransferFailed, err)
		}
	}
	if split.Proceeds > 0 {
		if err := e.state.TransferCurrency(buyer, order.Creator, amount(split.Proceeds), nil); err != nil {
			return nil, stepError(ErrProceedsTransferFailed, err)
		}
	}
	proof := order.Proof()
	if err := e.withdrawAsset(vault, proof, buyer); err != nil {
		return nil, stepError(ErrTokenTransferFailed3, err)
	}
	reclaimed, err := e.closeVault(vault, proof, order.Creator)
	if err != nil {
		return nil, err
	}
	if err := e.retireOrder(order); err != nil {
		return nil, err
	}
	order.Status = OrderFilled
	e.emit(NewOrderFilledEvent(order, buyer, split, reclaimed))
	return order.Clone(), nil
}

func (e *Engine) retireOrder(order *Order) error {
	if err := e.state.OrderDelete(order.ID); err != nil {
		return err
	}
	return e.state.ListingDelete(order.Asset)
}

// Order returns the open order with the supplied identifier.
func (e *Engine) Order(id [20]byte) (*Order, error) {
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	return order.Clone(), nil
}
