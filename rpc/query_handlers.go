package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"nftmarket/core"
	nftstate "nftmarket/core/state"
	"nftmarket/crypto"
	"nftmarket/integrations/exports"
)

func (s *Server) handleGetOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	id, err := idParam(req)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	order, err := s.node.Order(id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderView(order))
}

func (s *Server) handleGetAuction(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	id, err := idParam(req)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	auction, err := s.node.Auction(id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionView(auction))
}

func (s *Server) handleGetListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	asset, err := assetParam(req)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	kind, id, err := s.node.ListingByAsset(asset)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	view := ListingView{Asset: crypto.FormatAsset(asset), Kind: listingKindName(kind)}
	switch kind {
	case core.ListingOrder:
		order, err := s.node.Order(id)
		if err != nil {
			writeMarketError(w, req.ID, err)
			return
		}
		view.Order = orderView(order)
	case core.ListingAuction:
		auction, err := s.node.Auction(id)
		if err != nil {
			writeMarketError(w, req.ID, err)
			return
		}
		view.Auction = auctionView(auction)
	}
	writeResult(w, req.ID, view)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return
	}
	var addrStr string
	if err := json.Unmarshal(req.Params[0], &addrStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address parameter", err.Error())
		return
	}
	addr, err := parseAccount("address", addrStr)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, BalanceView{Address: crypto.FormatAccount(addr), Balance: bigString(balance)})
}

func (s *Server) handleGetAsset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	asset, err := assetParam(req)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	entry, ok, err := s.node.Asset(asset)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	if !ok {
		writeMarketError(w, req.ID, nftstate.ErrAssetNotFound)
		return
	}
	writeResult(w, req.ID, assetView(entry))
}

func (s *Server) handleGetPauses(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]interface{}{"paused": s.node.Pauses().List()})
}

func (s *Server) handleListingHistory(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.requireHistory(w, req) {
		return
	}
	asset, err := assetParam(req)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	rows, err := s.history.ListingHistory(r.Context(), crypto.FormatAsset(asset))
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, rows)
}

func (s *Server) handleRecentSettlements(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.requireHistory(w, req) {
		return
	}
	var params settlementsParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeParamError(w, req.ID, err)
			return
		}
	}
	rows, err := s.history.RecentSettlements(r.Context(), params.Limit)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, rows)
}

func (s *Server) handleExportSettlements(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if !s.requireHistory(w, req) {
		return
	}
	var params settlementsParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeParamError(w, req.ID, err)
			return
		}
	}
	rows, err := s.history.RecentSettlements(r.Context(), params.Limit)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	format := params.Format
	if format == "" {
		format = exports.FormatCSV
	}
	data, checksum, err := exports.Settlements(format, rows)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ExportView{Format: format, Checksum: checksum, Data: string(data), Count: len(rows)})
}

func (s *Server) requireHistory(w http.ResponseWriter, req *RPCRequest) bool {
	if s.history != nil {
		return true
	}
	writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "explorer not configured", nil)
	return false
}

func idParam(req *RPCRequest) ([20]byte, error) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		return [20]byte{}, err
	}
	return parseAccount("id", params.ID)
}

func assetParam(req *RPCRequest) ([20]byte, error) {
	var params assetParams
	if err := decodeParams(req, &params); err != nil {
		return [20]byte{}, err
	}
	if params.Asset == "" {
		return [20]byte{}, fmt.Errorf("asset required")
	}
	return parseAsset("asset", params.Asset)
}
