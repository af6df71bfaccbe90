package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/market"
)

// DefaultQueueSize bounds events awaiting persistence.
const DefaultQueueSize = 1024

// ErrAssetNotIndexed is returned when no mint was recorded for an asset.
var ErrAssetNotIndexed = errors.New("explorer: asset not indexed")

// Open connects to the history database for the configured driver.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("explorer: unknown driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("explorer: open %s: %w", driver, err)
	}
	return db, nil
}

// Indexer persists committed market events. It is registered as a feed sink;
// Emit only enqueues and Run drains the queue.
type Indexer struct {
	db       *gorm.DB
	logger   *slog.Logger
	queue    chan *types.Event
	sequence atomic.Int64
	dropped  atomic.Uint64
	nowFn    func() time.Time
}

// NewIndexer migrates the schema and returns an indexer over db.
func NewIndexer(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("explorer: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("explorer: migrate: %w", err)
	}
	idx := &Indexer{
		db:     db,
		logger: log.With("component", "explorer"),
		queue:  make(chan *types.Event, DefaultQueueSize),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	idx.sequence.Store(time.Now().UnixNano())
	return idx, nil
}

// Emit implements events.Emitter. Events are dropped, and counted, when the
// queue is full.
func (i *Indexer) Emit(evt events.Event) {
	rendered := events.Render(evt)
	if rendered == nil {
		return
	}
	cloned := rendered.Clone()
	select {
	case i.queue <- &cloned:
	default:
		i.dropped.Add(1)
		i.logger.Warn("indexer queue full, event dropped", "type", cloned.Type)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (i *Indexer) Dropped() uint64 { return i.dropped.Load() }

// Run persists queued events until ctx is done.
func (i *Indexer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-i.queue:
			if err := i.Record(ctx, evt); err != nil {
				i.logger.Error("index event", "type", evt.Type, "error", err)
			}
		}
	}
}

// Record persists one event synchronously.
func (i *Indexer) Record(ctx context.Context, evt *types.Event) error {
	if evt == nil {
		return nil
	}
	attrs := evt.Attributes
	now := i.nowFn()
	seq := i.sequence.Add(1)

	if evt.Type == events.TypeAssetMinted {
		points, _ := strconv.ParseUint(attrs["royaltyPoints"], 10, 16)
		return i.db.WithContext(ctx).Save(&MintedAsset{
			Asset:         attrs["asset"],
			Creator:       attrs["creator"],
			Minter:        attrs["minter"],
			Symbol:        attrs["symbol"],
			URI:           attrs["uri"],
			RoyaltyPoints: uint16(points),
			MintedAt:      now,
		}).Error
	}

	kind := listingKind(evt.Type)
	if kind == "" {
		return nil
	}
	price := decimalAmount(attrs["price"])
	row := ListingEvent{
		ID:        uuid.New(),
		Sequence:  seq,
		ListingID: attrs["id"],
		Kind:      kind,
		EventType: evt.Type,
		Label:     EventLabel(evt.Type),
		Asset:     attrs["asset"],
		Creator:   attrs["creator"],
		Actor:     actor(evt),
		Price:     price,
		Status:    attrs["status"],
		Memo:      attrs["memo"],
		CreatedAt: now,
	}
	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		buyer, settled := settlementBuyer(evt)
		if !settled {
			return nil
		}
		return tx.Create(&Settlement{
			ID:        uuid.New(),
			Sequence:  seq,
			ListingID: attrs["id"],
			Kind:      kind,
			Asset:     attrs["asset"],
			Seller:    attrs["creator"],
			Buyer:     buyer,
			Price:     price,
			Royalty:   decimalAmount(attrs["royalty"]),
			Proceeds:  decimalAmount(attrs["proceeds"]),
			SettledAt: now,
		}).Error
	})
}

// ListingHistory returns every indexed transition for asset, oldest first.
func (i *Indexer) ListingHistory(ctx context.Context, asset string) ([]ListingEvent, error) {
	var out []ListingEvent
	err := i.db.WithContext(ctx).
		Where("asset = ?", strings.TrimSpace(asset)).
		Order("sequence asc").
		Find(&out).Error
	return out, err
}

// RecentSettlements returns up to limit settlements, newest first.
func (i *Indexer) RecentSettlements(ctx context.Context, limit int) ([]Settlement, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []Settlement
	err := i.db.WithContext(ctx).Order("sequence desc").Limit(limit).Find(&out).Error
	return out, err
}

// MintedAsset returns the indexed mint record of asset.
func (i *Indexer) MintedAsset(ctx context.Context, asset string) (*MintedAsset, error) {
	var out MintedAsset
	err := i.db.WithContext(ctx).Where("asset = ?", strings.TrimSpace(asset)).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssetNotIndexed
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func actor(evt *types.Event) string {
	for _, key := range []string{"buyer", "winner", "bidder"} {
		if v := evt.Attributes[key]; v != "" {
			return v
		}
	}
	return evt.Attributes["creator"]
}

// settlementBuyer reports the receiving party for settling events. An
// auction that resolves back to its creator is not a sale.
func settlementBuyer(evt *types.Event) (string, bool) {
	switch evt.Type {
	case market.EventTypeOrderFilled:
		return evt.Attributes["buyer"], true
	case market.EventTypeAuctionResolved:
		winner := evt.Attributes["winner"]
		return winner, winner != "" && winner != evt.Attributes["creator"]
	}
	return "", false
}

// decimalAmount normalises an event amount attribute. Missing or malformed
// values index as "0".
func decimalAmount(raw string) string {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return "0"
	}
	return strconv.FormatUint(v, 10)
}
