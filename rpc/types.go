package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"nftmarket/core"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/market"
)

// bigIntParam accepts a decimal integer as either a JSON number or string.
type bigIntParam struct {
	*big.Int
}

func (b *bigIntParam) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(data)), `"`))
	if raw == "" || raw == "null" {
		b.Int = nil
		return nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fmt.Errorf("invalid integer %q", raw)
	}
	b.Int = v
	return nil
}

type mintParams struct {
	Creator string `json:"creator"`
	Minter  string `json:"minter,omitempty"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	URI     string `json:"uri"`
	Royalty uint16 `json:"royalty"`
}

type createOrderParams struct {
	Creator string `json:"creator"`
	Asset   string `json:"asset"`
	Memo    string `json:"memo,omitempty"`
	Price   uint64 `json:"price"`
}

type listingActorParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
}

type fillOrderParams struct {
	Buyer          string `json:"buyer"`
	ID             string `json:"id"`
	RoyaltyPercent uint16 `json:"royaltyPercent"`
}

type createAuctionParams struct {
	Creator   string      `json:"creator"`
	Asset     string      `json:"asset"`
	Memo      string      `json:"memo,omitempty"`
	Price     uint64      `json:"price"`
	StartTime bigIntParam `json:"startTime"`
	EndTime   bigIntParam `json:"endTime"`
}

type bidParams struct {
	Bidder string `json:"bidder"`
	ID     string `json:"id"`
	Price  uint64 `json:"price"`
}

type resolveAuctionParams struct {
	ID             string `json:"id"`
	RoyaltyPercent uint16 `json:"royaltyPercent"`
}

type idParams struct {
	ID string `json:"id"`
}

type assetParams struct {
	Asset string `json:"asset"`
}

type pauseParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type settlementsParams struct {
	Limit  int    `json:"limit,omitempty"`
	Format string `json:"format,omitempty"`
}

type creditParams struct {
	Address string      `json:"address"`
	Amount  bigIntParam `json:"amount"`
}

// OrderView is the RPC rendering of an order.
type OrderView struct {
	ID        string `json:"id"`
	Creator   string `json:"creator"`
	Asset     string `json:"asset"`
	Memo      string `json:"memo,omitempty"`
	Price     string `json:"price"`
	Bump      uint8  `json:"bump"`
	CreatedAt uint64 `json:"createdAt"`
	Status    string `json:"status"`
}

// AuctionView is the RPC rendering of an auction.
type AuctionView struct {
	ID             string `json:"id"`
	Creator        string `json:"creator"`
	Asset          string `json:"asset"`
	RefundReceiver string `json:"refundReceiver"`
	Memo           string `json:"memo,omitempty"`
	Price          string `json:"price"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	Bump           uint8  `json:"bump"`
	HasBid         bool   `json:"hasBid"`
	Status         string `json:"status"`
}

// AssetView is the RPC rendering of a registry entry.
type AssetView struct {
	ID            string `json:"id"`
	Creator       string `json:"creator"`
	Minter        string `json:"minter"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	URI           string `json:"uri"`
	RoyaltyPoints uint16 `json:"royaltyPoints"`
	Holder        string `json:"holder"`
}

// ListingView reports which listing currently holds an asset.
type ListingView struct {
	Asset   string       `json:"asset"`
	Kind    string       `json:"kind"`
	Order   *OrderView   `json:"order,omitempty"`
	Auction *AuctionView `json:"auction,omitempty"`
}

// BalanceView is a currency balance.
type BalanceView struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// ExportView carries a serialised settlement export.
type ExportView struct {
	Format   string `json:"format"`
	Checksum string `json:"checksum"`
	Data     string `json:"data"`
	Count    int    `json:"count"`
}

func orderView(o *market.Order) *OrderView {
	if o == nil {
		return nil
	}
	return &OrderView{
		ID:        crypto.FormatAccount(o.ID),
		Creator:   crypto.FormatAccount(o.Creator),
		Asset:     crypto.FormatAsset(o.Asset),
		Memo:      o.Memo,
		Price:     strconv.FormatUint(o.Price, 10),
		Bump:      o.Bump,
		CreatedAt: o.CreatedAt,
		Status:    o.Status.String(),
	}
}

func auctionView(a *market.Auction) *AuctionView {
	if a == nil {
		return nil
	}
	return &AuctionView{
		ID:             crypto.FormatAccount(a.ID),
		Creator:        crypto.FormatAccount(a.Creator),
		Asset:          crypto.FormatAsset(a.Asset),
		RefundReceiver: crypto.FormatAccount(a.RefundReceiver),
		Memo:           a.Memo,
		Price:          strconv.FormatUint(a.Price, 10),
		StartTime:      bigString(a.StartTime),
		EndTime:        bigString(a.EndTime),
		Bump:           a.Bump,
		HasBid:         a.HasBid(),
		Status:         a.Status.String(),
	}
}

func assetView(a *types.Asset) *AssetView {
	if a == nil {
		return nil
	}
	return &AssetView{
		ID:            crypto.FormatAsset(a.ID),
		Creator:       crypto.FormatAccount(a.Creator),
		Minter:        crypto.FormatAccount(a.Minter),
		Name:          a.Name,
		Symbol:        a.Symbol,
		URI:           a.URI,
		RoyaltyPoints: a.RoyaltyPoints,
		Holder:        crypto.FormatAccount(a.Holder),
	}
}

func listingKindName(kind core.ListingKind) string {
	if kind == core.ListingNone {
		return "none"
	}
	return string(kind)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// decodeParams unmarshals the single parameter object of req into dst.
func decodeParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("parameter object required")
	}
	decoder := json.NewDecoder(strings.NewReader(string(req.Params[0])))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid parameter object: %w", err)
	}
	return nil
}

func parseAccount(field, raw string) ([20]byte, error) {
	return parsePrefixed(field, raw, crypto.AccountPrefix)
}

func parseAsset(field, raw string) ([20]byte, error) {
	return parsePrefixed(field, raw, crypto.AssetPrefix)
}

func parsePrefixed(field, raw string, prefix crypto.AddressPrefix) ([20]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return [20]byte{}, fmt.Errorf("%s required", field)
	}
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	if addr.Prefix() != prefix {
		return [20]byte{}, fmt.Errorf("%s: expected %s prefix, got %s", field, prefix, addr.Prefix())
	}
	return addr.Array(), nil
}
