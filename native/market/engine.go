package market

import (
	"math/big"
	"time"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/common"
)

// Ledger moves currency balances and asset units between accounts. Debiting an
// account that backs a vault is only accepted with that vault's authority
// proof.
type Ledger interface {
	Balance(addr [20]byte) (*big.Int, error)
	TransferCurrency(from, to [20]byte, amount *big.Int, auth *crypto.AuthorityProof) error
	AssetHolder(asset [20]byte) ([20]byte, bool, error)
	TransferAsset(asset, from, to [20]byte, auth *crypto.AuthorityProof) error
}

type engineState interface {
	Ledger
	AssetGet(id [20]byte) (*types.Asset, bool, error)
	OrderGet(id [20]byte) (*Order, bool, error)
	OrderPut(*Order) error
	OrderDelete(id [20]byte) error
	AuctionGet(id [20]byte) (*Auction, bool, error)
	AuctionPut(*Auction) error
	AuctionDelete(id [20]byte) error
	VaultGet(authority [20]byte) (*Vault, bool, error)
	VaultPut(*Vault) error
	VaultDelete(authority [20]byte) error
	ListingGet(asset [20]byte) ([20]byte, bool, error)
	ListingPut(asset, listing [20]byte) error
	ListingDelete(asset [20]byte) error
}

const (
	moduleOrder   = "order"
	moduleAuction = "auction"
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine applies order and auction transitions against the configured state.
// It performs no rollback of its own: callers run it against a speculative
// copy and discard the copy when an operation fails.
type Engine struct {
	state          engineState
	emitter        events.Emitter
	pauses         common.PauseView
	feeTreasury    [20]byte
	depositPerByte *big.Int
	nowFn          func() int64
}

// NewEngine creates a market engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter:        events.NoopEmitter{},
		depositPerByte: big.NewInt(0),
		nowFn:          func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFeeTreasury configures the address that receives platform fees.
func (e *Engine) SetFeeTreasury(addr [20]byte) { e.feeTreasury = addr }

// SetPauses configures the module pause view consulted before every
// transition.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetDepositPerByte configures the storage deposit rate charged per byte of
// listing state. Nil or negative rates disable the deposit.
func (e *Engine) SetDepositPerByte(rate *big.Int) {
	if rate == nil || rate.Sign() < 0 {
		e.depositPerByte = big.NewInt(0)
		return
	}
	e.depositPerByte = new(big.Int).Set(rate)
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) guard(module string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, module); err != nil {
		return ErrModulePaused
	}
	return nil
}

func (e *Engine) ensureTreasuryConfigured() error {
	if e == nil || e.feeTreasury == ([20]byte{}) {
		return errNilTreasury
	}
	return nil
}

func (e *Engine) deposit(space uint64) *big.Int {
	if e == nil || e.depositPerByte == nil || e.depositPerByte.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(e.depositPerByte, new(big.Int).SetUint64(space))
}

// payPlatformFee moves the listing fee from the creator to the treasury.
func (e *Engine) payPlatformFee(creator [20]byte, price uint64) (uint64, error) {
	fee := PlatformFee(price)
	if fee == 0 {
		return 0, nil
	}
	if err := e.state.TransferCurrency(creator, e.feeTreasury, amount(fee), nil); err != nil {
		return 0, stepError(ErrFeeTransferFailed, err)
	}
	return fee, nil
}

// ensureUnlisted enforces the single open listing per asset.
func (e *Engine) ensureUnlisted(asset [20]byte) error {
	_, listed, err := e.state.ListingGet(asset)
	if err != nil {
		return err
	}
	if listed {
		return ErrListingExists
	}
	return nil
}

// royaltyRecipient resolves the account credited with royalties for asset.
func (e *Engine) royaltyRecipient(asset [20]byte) ([20]byte, error) {
	entry, ok, err := e.state.AssetGet(asset)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, stepError(ErrRoyaltyTransferFailed, errAssetUnknown)
	}
	if entry.Minter == ([20]byte{}) {
		return entry.Creator, nil
	}
	return entry.Minter, nil
}

func amount(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
