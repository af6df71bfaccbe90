package events

import (
	"nftmarket/core/types"
	"nftmarket/crypto"
)

const (
	// TypeAssetMinted is emitted whenever the registry creates an asset.
	TypeAssetMinted = "registry.asset.minted"
)

type AssetMinted struct {
	Asset         [20]byte
	Creator       [20]byte
	Minter        [20]byte
	Symbol        string
	URI           string
	RoyaltyPoints uint16
}

func (AssetMinted) EventType() string { return TypeAssetMinted }

func (e AssetMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeAssetMinted,
		Attributes: map[string]string{
			"asset":         crypto.FormatAsset(e.Asset),
			"creator":       crypto.FormatAccount(e.Creator),
			"minter":        crypto.FormatAccount(e.Minter),
			"symbol":        e.Symbol,
			"uri":           e.URI,
			"royaltyPoints": formatUint(uint64(e.RoyaltyPoints)),
		},
	}
}
