package market

import (
	"math/big"
	"strconv"

	"nftmarket/core/types"
	"nftmarket/crypto"
)

const (
	EventTypeOrderCreated     = "market.order.created"
	EventTypeOrderFilled      = "market.order.filled"
	EventTypeOrderCancelled   = "market.order.cancelled"
	EventTypeAuctionCreated   = "market.auction.created"
	EventTypeAuctionBid       = "market.auction.bid"
	EventTypeAuctionCancelled = "market.auction.cancelled"
	EventTypeAuctionResolved  = "market.auction.resolved"
)

// NewOrderCreatedEvent returns the payload for a newly listed order.
func NewOrderCreatedEvent(o *Order, fee uint64, deposit *big.Int) *types.Event {
	evt := newOrderEvent(EventTypeOrderCreated, o)
	evt.Attributes["fee"] = strconv.FormatUint(fee, 10)
	evt.Attributes["deposit"] = cloneBigInt(deposit).String()
	return evt
}

// NewOrderFilledEvent returns the payload for a settled order.
func NewOrderFilledEvent(o *Order, buyer [20]byte, split Split, reclaimed *big.Int) *types.Event {
	evt := newOrderEvent(EventTypeOrderFilled, o)
	evt.Attributes["buyer"] = crypto.FormatAccount(buyer)
	addSplit(evt, split)
	evt.Attributes["reclaimed"] = cloneBigInt(reclaimed).String()
	return evt
}

// NewOrderCancelledEvent returns the payload for a withdrawn order.
func NewOrderCancelledEvent(o *Order, reclaimed *big.Int) *types.Event {
	evt := newOrderEvent(EventTypeOrderCancelled, o)
	evt.Attributes["reclaimed"] = cloneBigInt(reclaimed).String()
	return evt
}

// NewAuctionCreatedEvent returns the payload for a newly listed auction.
func NewAuctionCreatedEvent(a *Auction, fee uint64, deposit *big.Int) *types.Event {
	evt := newAuctionEvent(EventTypeAuctionCreated, a)
	evt.Attributes["fee"] = strconv.FormatUint(fee, 10)
	evt.Attributes["deposit"] = cloneBigInt(deposit).String()
	return evt
}

// NewAuctionBidEvent returns the payload for an accepted bid. refunded is the
// amount returned to the previous leader, zero when there was none.
func NewAuctionBidEvent(a *Auction, previous [20]byte, refunded uint64) *types.Event {
	evt := newAuctionEvent(EventTypeAuctionBid, a)
	evt.Attributes["bidder"] = crypto.FormatAccount(a.RefundReceiver)
	evt.Attributes["refund"] = strconv.FormatUint(refunded, 10)
	if refunded > 0 {
		evt.Attributes["refundedTo"] = crypto.FormatAccount(previous)
	}
	return evt
}

// NewAuctionCancelledEvent returns the payload for a withdrawn auction.
func NewAuctionCancelledEvent(a *Auction, refunded uint64, reclaimed *big.Int) *types.Event {
	evt := newAuctionEvent(EventTypeAuctionCancelled, a)
	evt.Attributes["refund"] = strconv.FormatUint(refunded, 10)
	evt.Attributes["reclaimed"] = cloneBigInt(reclaimed).String()
	return evt
}

// NewAuctionResolvedEvent returns the payload for a closed auction. winner is
// the creator when no bid was ever placed.
func NewAuctionResolvedEvent(a *Auction, winner [20]byte, split Split, reclaimed *big.Int) *types.Event {
	evt := newAuctionEvent(EventTypeAuctionResolved, a)
	evt.Attributes["winner"] = crypto.FormatAccount(winner)
	addSplit(evt, split)
	evt.Attributes["reclaimed"] = cloneBigInt(reclaimed).String()
	return evt
}

func addSplit(evt *types.Event, split Split) {
	evt.Attributes["royalty"] = strconv.FormatUint(split.Royalty, 10)
	evt.Attributes["proceeds"] = strconv.FormatUint(split.Proceeds, 10)
}

func newOrderEvent(eventType string, o *Order) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = crypto.FormatAccount(o.ID)
	attrs["creator"] = crypto.FormatAccount(o.Creator)
	attrs["asset"] = crypto.FormatAsset(o.Asset)
	attrs["price"] = strconv.FormatUint(o.Price, 10)
	attrs["status"] = o.Status.String()
	if o.Memo != "" {
		attrs["memo"] = o.Memo
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newAuctionEvent(eventType string, a *Auction) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = crypto.FormatAccount(a.ID)
	attrs["creator"] = crypto.FormatAccount(a.Creator)
	attrs["asset"] = crypto.FormatAsset(a.Asset)
	attrs["price"] = strconv.FormatUint(a.Price, 10)
	attrs["startTime"] = cloneBigInt(a.StartTime).String()
	attrs["endTime"] = cloneBigInt(a.EndTime).String()
	attrs["status"] = a.Status.String()
	if a.Memo != "" {
		attrs["memo"] = a.Memo
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
