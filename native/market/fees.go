package market

import (
	"github.com/holiman/uint256"
)

const (
	// PlatformFeePercent is levied on the listing price at creation.
	PlatformFeePercent = 2
	// MaxRoyaltyPercent bounds the settlement-time royalty parameter.
	MaxRoyaltyPercent = 100
)

var hundred = uint256.NewInt(100)

// PlatformFee returns price * 2 / 100, truncated.
func PlatformFee(price uint64) uint64 {
	fee := new(uint256.Int).Mul(uint256.NewInt(price), uint256.NewInt(PlatformFeePercent))
	fee.Div(fee, hundred)
	return fee.Uint64()
}

// Royalty returns price * points / 100, truncated. Points is a percentage in
// [0, 100]; larger values are rejected so the royalty never exceeds the price.
func Royalty(price uint64, points uint16) (uint64, error) {
	if points > MaxRoyaltyPercent {
		return 0, ErrRoyaltyOutOfRange
	}
	royalty := new(uint256.Int).Mul(uint256.NewInt(price), uint256.NewInt(uint64(points)))
	royalty.Div(royalty, hundred)
	return royalty.Uint64(), nil
}

// SellerProceeds returns the part of price left for the creator once the
// royalty is paid.
func SellerProceeds(price, royalty uint64) uint64 {
	if royalty >= price {
		return 0
	}
	return price - royalty
}

// Split is the fund distribution of one settlement.
type Split struct {
	Price    uint64
	Royalty  uint64
	Proceeds uint64
}

// ComputeSplit derives the settlement split for a sale at price.
func ComputeSplit(price uint64, points uint16) (Split, error) {
	royalty, err := Royalty(price, points)
	if err != nil {
		return Split{}, err
	}
	return Split{Price: price, Royalty: royalty, Proceeds: SellerProceeds(price, royalty)}, nil
}
