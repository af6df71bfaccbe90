package explorer

import (
	"strings"

	"nftmarket/core/events"
	"nftmarket/native/market"
)

var eventLabels = map[string]string{
	market.EventTypeOrderCreated:     "Listed for sale",
	market.EventTypeOrderFilled:      "Sold",
	market.EventTypeOrderCancelled:   "Listing withdrawn",
	market.EventTypeAuctionCreated:   "Auction opened",
	market.EventTypeAuctionBid:       "Bid placed",
	market.EventTypeAuctionCancelled: "Auction cancelled",
	market.EventTypeAuctionResolved:  "Auction settled",
	events.TypeAssetMinted:           "Minted",
}

// EventLabel returns the explorer label for a committed event type.
func EventLabel(eventType string) string {
	if label, ok := eventLabels[strings.TrimSpace(eventType)]; ok {
		return label
	}
	return "Activity"
}

// listingKind maps an event type to the listing kind it belongs to.
func listingKind(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "market.order."):
		return KindOrder
	case strings.HasPrefix(eventType, "market.auction."):
		return KindAuction
	default:
		return ""
	}
}
