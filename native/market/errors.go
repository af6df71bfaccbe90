package market

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrInsufficientMoney = errors.New("market: insufficient money")
	ErrAuctionEnded      = errors.New("market: auction ended")
	ErrAuctionNotEnded   = errors.New("market: auction not ended")
	ErrInvalidEndTime    = errors.New("market: invalid end time")
	ErrInvalidStartTime  = errors.New("market: invalid start time")
	ErrInvalidReceiver   = errors.New("market: invalid refund receiver")
	ErrRoyaltyOutOfRange = errors.New("market: royalty percent out of range")
	ErrMemoTooLong       = errors.New("market: memo too long")
	ErrInvalidMemo       = errors.New("market: invalid memo")
)

// State errors.
var (
	ErrOrderNotFound   = errors.New("market: order not found")
	ErrAuctionNotFound = errors.New("market: auction not found")
	ErrListingExists   = errors.New("market: asset already listed")
	ErrUnauthorized    = errors.New("market: unauthorized caller")
	ErrModulePaused    = errors.New("market: module paused")
)

// Collaborator failures, one per transfer call site.
var (
	ErrTokenTransferFailed    = errors.New("market: asset transfer into escrow failed")
	ErrTokenTransferFailed2   = errors.New("market: asset return to creator failed")
	ErrTokenTransferFailed3   = errors.New("market: asset delivery to buyer failed")
	ErrSolTransferFailed      = errors.New("market: bid refund failed")
	ErrTokenCloseFailed       = errors.New("market: escrow close failed")
	ErrFeeTransferFailed      = errors.New("market: platform fee transfer failed")
	ErrDepositTransferFailed  = errors.New("market: storage deposit transfer failed")
	ErrRoyaltyTransferFailed  = errors.New("market: royalty transfer failed")
	ErrProceedsTransferFailed = errors.New("market: proceeds transfer failed")
	ErrBidTransferFailed      = errors.New("market: bid transfer failed")
)

var (
	errNilState    = errors.New("market engine: state not configured")
	errNilTreasury = errors.New("market engine: fee treasury not configured")
)

// stepError tags a collaborator failure with the leg it happened on while
// keeping the underlying cause inspectable.
func stepError(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
