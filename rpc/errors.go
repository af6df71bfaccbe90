package rpc

import (
	"errors"
	"net/http"

	"nftmarket/core"
	nftstate "nftmarket/core/state"
	"nftmarket/native/common"
	"nftmarket/native/market"
	"nftmarket/native/registry"
)

const (
	codeMarketInvalidParams = -32030
	codeMarketNotFound      = -32031
	codeMarketForbidden     = -32032
	codeMarketConflict      = -32033
	codeMarketRejected      = -32034
	codeMarketInternal      = -32035
)

type errorKind struct {
	err    error
	name   string
	code   int
	status int
}

// errorKinds is matched in order: transfer legs wrap ledger causes such as
// ErrAssetNotFound, so the legs come first.
var errorKinds = []errorKind{
	{market.ErrTokenTransferFailed, "TokenTransferFailed", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrTokenTransferFailed2, "TokenTransferFailed2", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrTokenTransferFailed3, "TokenTransferFailed3", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrSolTransferFailed, "SolTransferFailed", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrTokenCloseFailed, "TokenCloseFailed", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrFeeTransferFailed, "FeeTransferFailed", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrDepositTransferFailed, "DepositTransferFailed", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrRoyaltyTransferFailed, "RoyaltyTransferFailed", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrProceedsTransferFailed, "ProceedsTransferFailed", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrBidTransferFailed, "BidTransferFailed", codeMarketRejected, http.StatusUnprocessableEntity},
	{registry.ErrMintFailed, "MintFailed", codeMarketRejected, http.StatusUnprocessableEntity},

	{market.ErrInsufficientMoney, "InsufficientMoney", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrAuctionEnded, "AuctionEnded", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrAuctionNotEnded, "AuctionNotEnded", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrInvalidEndTime, "InvalidEndTime", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrInvalidStartTime, "InvalidStartTime", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrInvalidReceiver, "InvalidReceiver", codeMarketRejected, http.StatusUnprocessableEntity},
	{market.ErrRoyaltyOutOfRange, "RoyaltyOutOfRange", codeMarketInvalidParams, http.StatusBadRequest},
	{market.ErrMemoTooLong, "MemoTooLong", codeMarketInvalidParams, http.StatusBadRequest},
	{market.ErrInvalidMemo, "InvalidMemo", codeMarketInvalidParams, http.StatusBadRequest},
	{registry.ErrRoyaltyExceeded, "RoyaltyExceeded", codeMarketInvalidParams, http.StatusBadRequest},
	{registry.ErrMetadataCreateFailed, "MetadataCreateFailed", codeMarketInvalidParams, http.StatusBadRequest},

	{market.ErrOrderNotFound, "OrderNotFound", codeMarketNotFound, http.StatusNotFound},
	{market.ErrAuctionNotFound, "AuctionNotFound", codeMarketNotFound, http.StatusNotFound},
	{nftstate.ErrAssetNotFound, "AssetNotFound", codeMarketNotFound, http.StatusNotFound},
	{market.ErrUnauthorized, "Unauthorized", codeMarketForbidden, http.StatusForbidden},
	{market.ErrModulePaused, "ModulePaused", codeMarketForbidden, http.StatusForbidden},
	{registry.ErrModulePaused, "ModulePaused", codeMarketForbidden, http.StatusForbidden},
	{common.ErrModulePaused, "ModulePaused", codeMarketForbidden, http.StatusForbidden},
	{market.ErrListingExists, "ListingExists", codeMarketConflict, http.StatusConflict},
	{core.ErrConflict, "Conflict", codeMarketConflict, http.StatusConflict},
}

// classify returns the named kind of err, falling back to an internal error.
func classify(err error) errorKind {
	for _, kind := range errorKinds {
		if errors.Is(err, kind.err) {
			return kind
		}
	}
	return errorKind{err: err, name: "InternalError", code: codeMarketInternal, status: http.StatusInternalServerError}
}

func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	kind := classify(err)
	writeError(w, kind.status, id, kind.code, kind.name, err.Error())
}

func writeParamError(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid params", err.Error())
}
