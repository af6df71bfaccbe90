package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftmarket/core/events"
	nftstate "nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/common"
	"nftmarket/native/market"
	"nftmarket/native/registry"
	"nftmarket/observability/metrics"
	"nftmarket/storage"
)

// DefaultMaxCommitRetries bounds re-execution after optimistic conflicts.
const DefaultMaxCommitRetries = 8

// ErrConflict is surfaced once commit retries are exhausted.
var ErrConflict = nftstate.ErrConflict

// Config carries the market parameters the node applies to every engine.
type Config struct {
	Treasury         [20]byte
	DepositPerByte   *big.Int
	MaxCommitRetries int
	Pauses           *common.Pauses
}

// Node is the settlement dispatcher. Every operation runs against a
// speculative copy of state under a per-asset lock; the copy commits in one
// batch or is discarded, and events are only published after a commit.
type Node struct {
	db         storage.Database
	state      *nftstate.Manager
	feed       *events.Feed
	locks      *keyedMutex
	cfg        Config
	nowFn      func() int64
	logger     *slog.Logger
	metrics    *metrics.MarketMetrics
	tracer     trace.Tracer
	maxRetries int
}

// NewNode wires a dispatcher over db.
func NewNode(db storage.Database, cfg Config) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if cfg.Treasury == ([20]byte{}) {
		return nil, fmt.Errorf("core: treasury address required")
	}
	if cfg.DepositPerByte != nil && cfg.DepositPerByte.Sign() < 0 {
		return nil, fmt.Errorf("core: deposit per byte must not be negative")
	}
	if cfg.Pauses == nil {
		cfg.Pauses = common.NewPauses()
	}
	retries := cfg.MaxCommitRetries
	if retries <= 0 {
		retries = DefaultMaxCommitRetries
	}
	return &Node{
		db:         db,
		state:      nftstate.NewManager(db),
		feed:       events.NewFeed(),
		locks:      newKeyedMutex(),
		cfg:        cfg,
		nowFn:      func() int64 { return time.Now().Unix() },
		logger:     slog.Default(),
		tracer:     otel.Tracer("nftmarket/core"),
		maxRetries: retries,
	}, nil
}

// SetLogger overrides the logger used for operation outcomes.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

// SetMetrics enables Prometheus instrumentation.
func (n *Node) SetMetrics(m *metrics.MarketMetrics) { n.metrics = m }

// SetNowFunc overrides the clock handed to engines.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
}

// Feed exposes the committed event feed.
func (n *Node) Feed() *events.Feed { return n.feed }

// State exposes the committed state for read-only queries and bootstrapping.
func (n *Node) State() *nftstate.Manager { return n.state }

// Pauses exposes the runtime module pause switches.
func (n *Node) Pauses() *common.Pauses { return n.cfg.Pauses }

// Close releases the underlying database.
func (n *Node) Close() error { return n.db.Close() }

func (n *Node) newMarketEngine(st *nftstate.Manager, emitter events.Emitter) *market.Engine {
	engine := market.NewEngine()
	engine.SetState(st)
	engine.SetEmitter(emitter)
	engine.SetFeeTreasury(n.cfg.Treasury)
	engine.SetDepositPerByte(n.cfg.DepositPerByte)
	engine.SetPauses(n.cfg.Pauses)
	engine.SetNowFunc(n.nowFn)
	return engine
}

func (n *Node) newRegistry(st *nftstate.Manager, emitter events.Emitter) *registry.Registry {
	r := registry.New()
	r.SetState(st)
	r.SetEmitter(emitter)
	r.SetPauses(n.cfg.Pauses)
	return r
}

// execute runs fn against fresh speculative copies until one commits, fn
// fails, or the retry budget is spent.
func (n *Node) execute(ctx context.Context, op types.OpType, key [20]byte, fn func(*nftstate.Manager, events.Emitter) error) error {
	ctx, span := n.tracer.Start(ctx, "market."+string(op), trace.WithAttributes(
		attribute.String("market.op", string(op)),
		attribute.String("market.asset", crypto.FormatAsset(key)),
	))
	defer span.End()

	release := n.locks.Lock(key)
	defer release()

	start := time.Now()
	attempts := 0
	var err error
	for {
		attempts++
		if err = ctx.Err(); err != nil {
			break
		}
		spec := n.state.Copy()
		buf := events.NewBuffer()
		if err = fn(spec, buf); err != nil {
			break
		}
		if err = spec.Commit(); err == nil {
			buf.FlushTo(n.feed)
			break
		}
		if !errors.Is(err, nftstate.ErrConflict) {
			break
		}
		n.metrics.ObserveConflict(string(op))
		if attempts > n.maxRetries {
			err = fmt.Errorf("%w after %d attempts", ErrConflict, attempts)
			break
		}
	}

	outcome := "committed"
	level := slog.LevelInfo
	if err != nil {
		outcome = "rejected"
		level = slog.LevelWarn
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("market.attempts", attempts))
	n.metrics.ObserveOperation(string(op), outcome, time.Since(start).Seconds())
	attrs := []any{
		slog.String("op", string(op)),
		slog.String("asset", crypto.FormatAsset(key)),
		slog.String("outcome", outcome),
		slog.Int("attempts", attempts),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	n.logger.Log(ctx, level, "market operation", attrs...)
	return err
}

// MintAsset registers a new asset held by creator.
func (n *Node) MintAsset(ctx context.Context, creator, minter [20]byte, meta registry.Metadata) (*types.Asset, error) {
	var minted *types.Asset
	err := n.execute(ctx, types.OpMintAsset, creator, func(st *nftstate.Manager, em events.Emitter) error {
		asset, err := n.newRegistry(st, em).Mint(creator, minter, meta)
		minted = asset
		return err
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// CreateOrder lists asset at a fixed price.
func (n *Node) CreateOrder(ctx context.Context, creator, asset [20]byte, memo string, price uint64) (*market.Order, error) {
	var order *market.Order
	err := n.execute(ctx, types.OpCreateOrder, asset, func(st *nftstate.Manager, em events.Emitter) error {
		o, err := n.newMarketEngine(st, em).CreateOrder(creator, asset, memo, price)
		order = o
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder withdraws an open order on behalf of caller.
func (n *Node) CancelOrder(ctx context.Context, caller, id [20]byte) (*market.Order, error) {
	asset, err := n.orderAsset(id)
	if err != nil {
		return nil, err
	}
	var order *market.Order
	err = n.execute(ctx, types.OpCancelOrder, asset, func(st *nftstate.Manager, em events.Emitter) error {
		o, err := n.newMarketEngine(st, em).CancelOrder(caller, id)
		order = o
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// FillOrder settles an open order with buyer.
func (n *Node) FillOrder(ctx context.Context, buyer, id [20]byte, royaltyPercent uint16) (*market.Order, error) {
	asset, err := n.orderAsset(id)
	if err != nil {
		return nil, err
	}
	var order *market.Order
	err = n.execute(ctx, types.OpFillOrder, asset, func(st *nftstate.Manager, em events.Emitter) error {
		o, err := n.newMarketEngine(st, em).FillOrder(buyer, id, royaltyPercent)
		order = o
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CreateAuction lists asset for bidding until endTime.
func (n *Node) CreateAuction(ctx context.Context, creator, asset [20]byte, memo string, price uint64, startTime, endTime *big.Int) (*market.Auction, error) {
	var auction *market.Auction
	err := n.execute(ctx, types.OpCreateAuction, asset, func(st *nftstate.Manager, em events.Emitter) error {
		a, err := n.newMarketEngine(st, em).CreateAuction(creator, asset, memo, price, startTime, endTime)
		auction = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return auction, nil
}

// Bid places a bid on an open auction.
func (n *Node) Bid(ctx context.Context, bidder, id [20]byte, price uint64) (*market.Auction, error) {
	return n.auctionOp(ctx, types.OpBid, id, func(engine *market.Engine) (*market.Auction, error) {
		return engine.Bid(bidder, id, price)
	})
}

// CancelAuction withdraws an open auction on behalf of caller.
func (n *Node) CancelAuction(ctx context.Context, caller, id [20]byte) (*market.Auction, error) {
	return n.auctionOp(ctx, types.OpCancelAuction, id, func(engine *market.Engine) (*market.Auction, error) {
		return engine.CancelAuction(caller, id)
	})
}

// ResolveAuction settles an auction whose end time has passed.
func (n *Node) ResolveAuction(ctx context.Context, id [20]byte, royaltyPercent uint16) (*market.Auction, error) {
	return n.auctionOp(ctx, types.OpResolveAuction, id, func(engine *market.Engine) (*market.Auction, error) {
		return engine.ResolveAuction(id, royaltyPercent)
	})
}

func (n *Node) auctionOp(ctx context.Context, op types.OpType, id [20]byte, fn func(*market.Engine) (*market.Auction, error)) (*market.Auction, error) {
	asset, err := n.auctionAsset(id)
	if err != nil {
		return nil, err
	}
	var auction *market.Auction
	err = n.execute(ctx, op, asset, func(st *nftstate.Manager, em events.Emitter) error {
		a, err := fn(n.newMarketEngine(st, em))
		auction = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return auction, nil
}

func (n *Node) orderAsset(id [20]byte) ([20]byte, error) {
	order, ok, err := n.state.OrderGet(id)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, market.ErrOrderNotFound
	}
	return order.Asset, nil
}

func (n *Node) auctionAsset(id [20]byte) ([20]byte, error) {
	auction, ok, err := n.state.AuctionGet(id)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, market.ErrAuctionNotFound
	}
	return auction.Asset, nil
}
