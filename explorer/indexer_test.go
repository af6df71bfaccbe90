package explorer

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/market"
)

func setupIndexer(t *testing.T) *Indexer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	idx, err := NewIndexer(db, nil)
	require.NoError(t, err)
	return idx
}

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

type wrapped struct{ evt *types.Event }

func (w wrapped) EventType() string   { return w.evt.Type }
func (w wrapped) Event() *types.Event { return w.evt }

func TestIndexerRecordsOrderLifecycle(t *testing.T) {
	idx := setupIndexer(t)
	ctx := context.Background()

	order := &market.Order{ID: addr(1), Creator: addr(2), Asset: addr(3), Price: 1000, Status: market.OrderOpen}
	require.NoError(t, idx.Record(ctx, market.NewOrderCreatedEvent(order, 20, big.NewInt(0))))

	filled := order.Clone()
	filled.Status = market.OrderFilled
	split := market.Split{Price: 1000, Royalty: 50, Proceeds: 950}
	require.NoError(t, idx.Record(ctx, market.NewOrderFilledEvent(filled, addr(4), split, big.NewInt(0))))

	history, err := idx.ListingHistory(ctx, crypto.FormatAsset(addr(3)))
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, market.EventTypeOrderCreated, history[0].EventType)
	require.Equal(t, "Listed for sale", history[0].Label)
	require.Equal(t, KindOrder, history[0].Kind)
	require.Equal(t, market.EventTypeOrderFilled, history[1].EventType)
	require.Equal(t, crypto.FormatAccount(addr(4)), history[1].Actor)

	settlements, err := idx.RecentSettlements(ctx, 10)
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	require.Equal(t, "1000", settlements[0].Price)
	require.Equal(t, "50", settlements[0].Royalty)
	require.Equal(t, "950", settlements[0].Proceeds)
	require.Equal(t, crypto.FormatAccount(addr(2)), settlements[0].Seller)
	require.Equal(t, crypto.FormatAccount(addr(4)), settlements[0].Buyer)
}

func TestIndexerKeepsFullRangeAmounts(t *testing.T) {
	idx := setupIndexer(t)
	ctx := context.Background()

	const top = uint64(math.MaxUint64)
	order := &market.Order{ID: addr(21), Creator: addr(22), Asset: addr(23), Price: top, Status: market.OrderOpen}
	require.NoError(t, idx.Record(ctx, market.NewOrderCreatedEvent(order, top/50, big.NewInt(0))))

	filled := order.Clone()
	filled.Status = market.OrderFilled
	split, err := market.ComputeSplit(top, 100)
	require.NoError(t, err)
	require.NoError(t, idx.Record(ctx, market.NewOrderFilledEvent(filled, addr(24), split, big.NewInt(0))))

	history, err := idx.ListingHistory(ctx, crypto.FormatAsset(addr(23)))
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "18446744073709551615", history[0].Price)

	settlements, err := idx.RecentSettlements(ctx, 1)
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	require.Equal(t, "18446744073709551615", settlements[0].Price)
	require.Equal(t, strconv.FormatUint(split.Royalty, 10), settlements[0].Royalty)
	require.Equal(t, strconv.FormatUint(split.Proceeds, 10), settlements[0].Proceeds)
}

func TestDecimalAmountNormalises(t *testing.T) {
	require.Equal(t, "42", decimalAmount(" 042 "))
	require.Equal(t, "0", decimalAmount(""))
	require.Equal(t, "0", decimalAmount("-5"))
	require.Equal(t, "0", decimalAmount("18446744073709551616"))
}

func TestIndexerSkipsUnsoldAuction(t *testing.T) {
	idx := setupIndexer(t)
	ctx := context.Background()

	auction := &market.Auction{
		ID: addr(5), Creator: addr(6), Asset: addr(7), RefundReceiver: addr(6), Price: 10,
		StartTime: big.NewInt(0), EndTime: big.NewInt(100), Status: market.AuctionResolved,
	}
	require.NoError(t, idx.Record(ctx, market.NewAuctionResolvedEvent(auction, addr(6), market.Split{Price: 10, Proceeds: 10}, big.NewInt(0))))

	history, err := idx.ListingHistory(ctx, crypto.FormatAsset(addr(7)))
	require.NoError(t, err)
	require.Len(t, history, 1)

	settlements, err := idx.RecentSettlements(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, settlements)
}

func TestIndexerRecordsMint(t *testing.T) {
	idx := setupIndexer(t)
	ctx := context.Background()

	minted := events.AssetMinted{Asset: addr(8), Creator: addr(9), Minter: addr(9), Symbol: "ART", URI: "ipfs://a", RoyaltyPoints: 5}
	require.NoError(t, idx.Record(ctx, minted.Event()))

	rec, err := idx.MintedAsset(ctx, crypto.FormatAsset(addr(8)))
	require.NoError(t, err)
	require.Equal(t, "ART", rec.Symbol)
	require.Equal(t, uint16(5), rec.RoyaltyPoints)

	_, err = idx.MintedAsset(ctx, crypto.FormatAsset(addr(10)))
	require.ErrorIs(t, err, ErrAssetNotIndexed)
}

func TestIndexerRunDrainsQueue(t *testing.T) {
	idx := setupIndexer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- idx.Run(ctx) }()

	order := &market.Order{ID: addr(11), Creator: addr(12), Asset: addr(13), Price: 7, Status: market.OrderOpen}
	idx.Emit(wrapped{evt: market.NewOrderCreatedEvent(order, 0, big.NewInt(0))})

	require.Eventually(t, func() bool {
		history, err := idx.ListingHistory(context.Background(), crypto.FormatAsset(addr(13)))
		return err == nil && len(history) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Zero(t, idx.Dropped())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
}
