package rpc

import (
	"fmt"
	"net/http"
	"strings"

	"nftmarket/crypto"
	"nftmarket/native/registry"
)

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params mintParams
	if err := decodeParams(req, &params); err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	creator, err := parseAccount("creator", params.Creator)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	var minter [20]byte
	if strings.TrimSpace(params.Minter) != "" {
		if minter, err = parseAccount("minter", params.Minter); err != nil {
			writeParamError(w, req.ID, err)
			return
		}
	}
	asset, err := s.node.MintAsset(r.Context(), creator, minter, registry.Metadata{
		Name:    params.Name,
		Symbol:  params.Symbol,
		URI:     params.URI,
		Royalty: params.Royalty,
	})
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, assetView(asset))
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	creator, err := parseAccount("creator", params.Creator)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	asset, err := parseAsset("asset", params.Asset)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	order, err := s.node.CreateOrder(r.Context(), creator, asset, params.Memo, params.Price)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderView(order))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, id, err := actorParams(req)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	order, err := s.node.CancelOrder(r.Context(), caller, id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderView(order))
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params fillOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	buyer, err := parseAccount("buyer", params.Buyer)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	id, err := parseAccount("id", params.ID)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	order, err := s.node.FillOrder(r.Context(), buyer, id, params.RoyaltyPercent)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, orderView(order))
}

func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createAuctionParams
	if err := decodeParams(req, &params); err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	creator, err := parseAccount("creator", params.Creator)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	asset, err := parseAsset("asset", params.Asset)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	if params.StartTime.Int == nil {
		writeParamError(w, req.ID, fmt.Errorf("startTime required"))
		return
	}
	if params.EndTime.Int == nil {
		writeParamError(w, req.ID, fmt.Errorf("endTime required"))
		return
	}
	auction, err := s.node.CreateAuction(r.Context(), creator, asset, params.Memo, params.Price, params.StartTime.Int, params.EndTime.Int)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionView(auction))
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bidParams
	if err := decodeParams(req, &params); err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	bidder, err := parseAccount("bidder", params.Bidder)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	id, err := parseAccount("id", params.ID)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	auction, err := s.node.Bid(r.Context(), bidder, id, params.Price)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionView(auction))
}

func (s *Server) handleCancelAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	caller, id, err := actorParams(req)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	auction, err := s.node.CancelAuction(r.Context(), caller, id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionView(auction))
}

func (s *Server) handleResolveAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params resolveAuctionParams
	if err := decodeParams(req, &params); err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	id, err := parseAccount("id", params.ID)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	auction, err := s.node.ResolveAuction(r.Context(), id, params.RoyaltyPercent)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionView(auction))
}

func actorParams(req *RPCRequest) ([20]byte, [20]byte, error) {
	var params listingActorParams
	if err := decodeParams(req, &params); err != nil {
		return [20]byte{}, [20]byte{}, err
	}
	caller, err := parseAccount("caller", params.Caller)
	if err != nil {
		return [20]byte{}, [20]byte{}, err
	}
	id, err := parseAccount("id", params.ID)
	if err != nil {
		return [20]byte{}, [20]byte{}, err
	}
	return caller, id, nil
}

func (s *Server) handleSetPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params pauseParams
	if err := decodeParams(req, &params); err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	module := strings.ToLower(strings.TrimSpace(params.Module))
	switch module {
	case "order", "auction", "registry":
	default:
		writeParamError(w, req.ID, fmt.Errorf("unknown module %q", params.Module))
		return
	}
	s.node.Pauses().Set(module, params.Paused)
	s.logger.Warn("module pause changed", "module", module, "paused", params.Paused)
	writeResult(w, req.ID, map[string]interface{}{"module": module, "paused": params.Paused})
}

func (s *Server) handleCredit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params creditParams
	if err := decodeParams(req, &params); err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	addr, err := parseAccount("address", params.Address)
	if err != nil {
		writeParamError(w, req.ID, err)
		return
	}
	if params.Amount.Int == nil || params.Amount.Sign() <= 0 {
		writeParamError(w, req.ID, fmt.Errorf("amount must be positive"))
		return
	}
	if err := s.node.Credit(addr, params.Amount.Int); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, BalanceView{Address: crypto.FormatAccount(addr), Balance: bigString(balance)})
}
