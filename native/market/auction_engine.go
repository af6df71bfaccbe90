package market

import (
	"math/big"

	"nftmarket/crypto"
)

// CreateAuction lists asset for competitive bidding until endTime. price is
// the reserve: the first bid must match or exceed it.
func (e *Engine) CreateAuction(creator, asset [20]byte, memo string, price uint64, startTime, endTime *big.Int) (*Auction, error) {
	if err := e.guard(moduleAuction); err != nil {
		return nil, err
	}
	if err := validateMemo(memo); err != nil {
		return nil, err
	}
	if startTime == nil || startTime.Sign() < 0 {
		return nil, ErrInvalidStartTime
	}
	if endTime == nil || big.NewInt(e.now()).Cmp(endTime) > 0 {
		return nil, ErrInvalidEndTime
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
	vault, err := e.openVault(crypto.NamespaceAuction, asset, creator, AuctionSpace(memo))
	if err != nil {
		return nil, err
	}
	if err := e.depositAsset(vault, creator); err != nil {
		return nil, stepError(ErrTokenTransferFailed, err)
	}
	auction := &Auction{
		ID:             vault.Authority,
		Creator:        creator,
		Asset:          asset,
		RefundReceiver: creator,
		Memo:           memo,
		Price:          price,
		StartTime:      new(big.Int).Set(startTime),
		EndTime:        new(big.Int).Set(endTime),
		Bump:           vault.Bump,
		Status:         AuctionOpen,
	}
	if err := e.state.AuctionPut(auction); err != nil {
		return nil, err
	}
	if err := e.state.ListingPut(asset, auction.ID); err != nil {
		return nil, err
	}
	e.emit(NewAuctionCreatedEvent(auction, fee, vault.Deposit))
	return auction.Clone(), nil
}

func (e *Engine) loadAuction(id [20]byte) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	auction, ok, err := e.state.AuctionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return auction, nil
}

func (e *Engine) ended(a *Auction) bool {
	return big.NewInt(e.now()).Cmp(cloneBigInt(a.EndTime)) >= 0
}

// Bid places newPrice on the auction. The previous leading bid, if any, is
// refunded from escrow before the new amount is taken from bidder, so the
// vault only ever holds the current leading bid.
func (e *Engine) Bid(bidder, id [20]byte, newPrice uint64) (*Auction, error) {
	if err := e.guard(moduleAuction); err != nil {
		return nil, err
	}
	auction, err := e.loadAuction(id)
	if err != nil {
		return nil, err
	}
	if newPrice < auction.Price {
		return nil, ErrInsufficientMoney
	}
	if e.ended(auction) {
		return nil, ErrAuctionEnded
	}
	if bidder == auction.Creator {
		return nil, ErrInvalidReceiver
	}
	balance, err := e.state.Balance(bidder)
	if err != nil {
		return nil, err
	}
	available := new(big.Int).Set(balance)
	if auction.HasBid() && bidder == auction.RefundReceiver {
		available.Add(available, amount(auction.Price))
	}
	if available.Cmp(amount(newPrice)) < 0 {
		return nil, ErrInsufficientMoney
	}
	vault, err := e.loadVault(auction.ID)
	if err != nil {
		return nil, stepError(ErrBidTransferFailed, err)
	}
	previous := auction.RefundReceiver
	var refunded uint64
	if auction.HasBid() {
		refunded = auction.Price
		if err := e.withdrawCurrency(vault, auction.Proof(), previous, refunded); err != nil {
			return nil, stepError(ErrSolTransferFailed, err)
		}
	}
	if err := e.depositCurrency(vault, bidder, newPrice); err != nil {
		return nil, stepError(ErrBidTransferFailed, err)
	}
	auction.RefundReceiver = bidder
	auction.Price = newPrice
	if err := e.state.AuctionPut(auction); err != nil {
		return nil, err
	}
	e.emit(NewAuctionBidEvent(auction, previous, refunded))
	return auction.Clone(), nil
}

// CancelAuction refunds the leading bidder, returns the asset to the creator
// and closes the auction. Only the creator may cancel, and only before the
// end time.
func (e *Engine) CancelAuction(caller, id [20]byte) (*Auction, error) {
	if err := e.guard(moduleAuction); err != nil {
		return nil, err
	}
	auction, err := e.loadAuction(id)
	if err != nil {
		return nil, err
	}
	if caller != auction.Creator {
		return nil, ErrUnauthorized
	}
	if e.ended(auction) {
		return nil, ErrAuctionEnded
	}
	vault, err := e.loadVault(auction.ID)
	if err != nil {
		return nil, stepError(ErrTokenCloseFailed, err)
	}
	proof := auction.Proof()
	var refunded uint64
	if auction.HasBid() {
		refunded = auction.Price
		if err := e.withdrawCurrency(vault, proof, auction.RefundReceiver, refunded); err != nil {
			return nil, stepError(ErrSolTransferFailed, err)
		}
	}
	if err := e.withdrawAsset(vault, proof, auction.Creator); err != nil {
		return nil, stepError(ErrTokenTransferFailed2, err)
	}
	reclaimed, err := e.closeVault(vault, proof, auction.Creator)
	if err != nil {
		return nil, err
	}
	if err := e.retireAuction(auction); err != nil {
		return nil, err
	}
	auction.Status = AuctionCancelled
	e.emit(NewAuctionCancelledEvent(auction, refunded, reclaimed))
	return auction.Clone(), nil
}

// ResolveAuction settles the auction once the end time has passed. With a
// leading bid the escrowed amount is split between royalty recipient and
// creator and the asset goes to the winner; without one the asset returns to
// the creator and no currency moves. Anyone may resolve.
func (e *Engine) ResolveAuction(id [20]byte, royaltyPercent uint16) (*Auction, error) {
	if err := e.guard(moduleAuction); err != nil {
		return nil, err
	}
	auction, err := e.loadAuction(id)
	if err != nil {
		return nil, err
	}
	if !e.ended(auction) {
		return nil, ErrAuctionNotEnded
	}
	if royaltyPercent > MaxRoyaltyPercent {
		return nil, ErrRoyaltyOutOfRange
	}
	vault, err := e.loadVault(auction.ID)
	if err != nil {
		return nil, stepError(ErrTokenCloseFailed, err)
	}
	proof := auction.Proof()
	winner := auction.Creator
	split := Split{}
	if auction.HasBid() {
		winner = auction.RefundReceiver
		split, err = ComputeSplit(auction.Price, royaltyPercent)
		if err != nil {
			return nil, err
		}
		if split.Royalty > 0 {
			recipient, err := e.royaltyRecipient(auction.Asset)
			if err != nil {
				return nil, err
			}
			if err := e.withdrawCurrency(vault, proof, recipient, split.Royalty); err != nil {
				return nil, stepError(ErrRoyaltyTransferFailed, err)
			}
		}
		if err := e.withdrawCurrency(vault, proof, auction.Creator, split.Proceeds); err != nil {
			return nil, stepError(ErrProceedsTransferFailed, err)
		}
		if err := e.withdrawAsset(vault, proof, winner); err != nil {
			return nil, stepError(ErrTokenTransferFailed3, err)
		}
	} else if err := e.withdrawAsset(vault, proof, auction.Creator); err != nil {
		return nil, stepError(ErrTokenTransferFailed2, err)
	}
	reclaimed, err := e.closeVault(vault, proof, auction.Creator)
	if err != nil {
		return nil, err
	}
	if err := e.retireAuction(auction); err != nil {
		return nil, err
	}
	auction.Status = AuctionResolved
	e.emit(NewAuctionResolvedEvent(auction, winner, split, reclaimed))
	return auction.Clone(), nil
}

func (e *Engine) retireAuction(auction *Auction) error {
	if err := e.state.AuctionDelete(auction.ID); err != nil {
		return err
	}
	return e.state.ListingDelete(auction.Asset)
}

// Auction returns the open auction with the supplied identifier.
func (e *Engine) Auction(id [20]byte) (*Auction, error) {
	auction, err := e.loadAuction(id)
	if err != nil {
		return nil, err
	}
	return auction.Clone(), nil
}
