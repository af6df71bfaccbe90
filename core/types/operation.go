package types

// OpType names a market state transition.
type OpType string

const (
	OpMintAsset      OpType = "mint_asset"
	OpCreateOrder    OpType = "create_order"
	OpCancelOrder    OpType = "cancel_order"
	OpFillOrder      OpType = "fill_order"
	OpCreateAuction  OpType = "create_auction"
	OpBid            OpType = "bid"
	OpCancelAuction  OpType = "cancel_auction"
	OpResolveAuction OpType = "auction_resolve"
)

// Module returns the pausable module that owns the operation.
func (o OpType) Module() string {
	switch o {
	case OpCreateOrder, OpCancelOrder, OpFillOrder:
		return "order"
	case OpCreateAuction, OpBid, OpCancelAuction, OpResolveAuction:
		return "auction"
	case OpMintAsset:
		return "registry"
	default:
		return ""
	}
}
