package market

import (
	"fmt"
	"math/big"
	"unicode/utf8"

	"nftmarket/crypto"
)

// MaxMemoLength bounds the free-text memo stored on a listing.
const MaxMemoLength = 256

// OrderStatus represents the lifecycle of a fixed-price listing.
type OrderStatus uint8

const (
	OrderOpen OrderStatus = iota
	OrderFilled
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderFilled:
		return "filled"
	case OrderCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// AuctionStatus represents the lifecycle of a competitive-bid listing.
type AuctionStatus uint8

const (
	AuctionOpen AuctionStatus = iota
	AuctionResolved
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionOpen:
		return "open"
	case AuctionResolved:
		return "resolved"
	case AuctionCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Order is an open fixed-price listing. The identifier is the order
// authority derived from the asset, so at most one order exists per asset.
// Records in a terminal status are never persisted.
type Order struct {
	ID        [20]byte
	Creator   [20]byte
	Asset     [20]byte
	Memo      string
	Price     uint64
	Bump      uint8
	CreatedAt uint64
	Status    OrderStatus
}

// Clone returns a copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

// Proof returns the authority proof that unlocks the order vault.
func (o *Order) Proof() crypto.AuthorityProof {
	return crypto.AuthorityProof{Namespace: crypto.NamespaceOrder, Asset: o.Asset, Bump: o.Bump}
}

// Auction is an open competitive-bid listing. RefundReceiver equals Creator
// until the first bid lands; afterwards it names the leading bidder and Price
// is the amount held in the auction vault on their behalf.
type Auction struct {
	ID             [20]byte
	Creator        [20]byte
	Asset          [20]byte
	RefundReceiver [20]byte
	Memo           string
	Price          uint64
	StartTime      *big.Int
	EndTime        *big.Int
	Bump           uint8
	Status         AuctionStatus
}

// Clone returns a deep copy of the auction.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	clone.StartTime = cloneBigInt(a.StartTime)
	clone.EndTime = cloneBigInt(a.EndTime)
	return &clone
}

// HasBid reports whether a real bid is held in escrow.
func (a *Auction) HasBid() bool {
	return a != nil && a.RefundReceiver != a.Creator
}

// Proof returns the authority proof that unlocks the auction vault.
func (a *Auction) Proof() crypto.AuthorityProof {
	return crypto.AuthorityProof{Namespace: crypto.NamespaceAuction, Asset: a.Asset, Bump: a.Bump}
}

// Vault is the custody slot bound to one listing. Authority is the account
// that holds the asset and currency; Balance tracks escrowed bid currency and
// Deposit the storage deposit charged at creation.
type Vault struct {
	Authority [20]byte
	Namespace crypto.Namespace
	Asset     [20]byte
	Bump      uint8
	Balance   *big.Int
	Deposit   *big.Int
}

// Clone returns a deep copy of the vault.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	clone.Balance = cloneBigInt(v.Balance)
	clone.Deposit = cloneBigInt(v.Deposit)
	return &clone
}

// OrderSpace returns the persisted size of an order with the given memo.
func OrderSpace(memo string) uint64 {
	return 8 + 20 + 20 + 4 + uint64(len(memo)) + 8 + 1
}

// AuctionSpace returns the persisted size of an auction with the given memo.
func AuctionSpace(memo string) uint64 {
	return 8 + 20 + 20 + 20 + 4 + uint64(len(memo)) + 8 + 16 + 16 + 1
}

// SanitizeOrder validates a decoded order record and returns a normalised
// copy.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("nil order")
	}
	clone := o.Clone()
	if err := validateMemo(clone.Memo); err != nil {
		return nil, err
	}
	if clone.Status > OrderCancelled {
		return nil, fmt.Errorf("invalid order status: %d", clone.Status)
	}
	return clone, nil
}

// SanitizeAuction validates a decoded auction record and returns a
// normalised copy with non-nil times.
func SanitizeAuction(a *Auction) (*Auction, error) {
	if a == nil {
		return nil, fmt.Errorf("nil auction")
	}
	clone := a.Clone()
	if err := validateMemo(clone.Memo); err != nil {
		return nil, err
	}
	if clone.StartTime.Sign() < 0 || clone.EndTime.Sign() < 0 {
		return nil, fmt.Errorf("auction times must be non-negative")
	}
	if clone.Status > AuctionCancelled {
		return nil, fmt.Errorf("invalid auction status: %d", clone.Status)
	}
	return clone, nil
}

func validateMemo(memo string) error {
	if len(memo) > MaxMemoLength {
		return fmt.Errorf("%w: %d bytes", ErrMemoTooLong, len(memo))
	}
	if !utf8.ValidString(memo) {
		return fmt.Errorf("%w: memo must be valid utf-8", ErrInvalidMemo)
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
