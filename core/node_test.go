package core

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/core/events"
	"nftmarket/crypto"
	"nftmarket/native/market"
	"nftmarket/native/registry"
	"nftmarket/storage"
)

const nodeTestNow = int64(1_700_000_000)

func addr(fill byte) [20]byte {
	var a [20]byte
	copy(a[:], bytes.Repeat([]byte{fill}, 20))
	return a
}

var treasury = addr(0xFE)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	node, err := NewNode(storage.NewMemDB(), Config{Treasury: treasury, MaxCommitRetries: 1_000})
	require.NoError(t, err)
	node.SetNowFunc(func() int64 { return nodeTestNow })
	return node
}

func mintFor(t *testing.T, node *Node, creator [20]byte, name string) [20]byte {
	t.Helper()
	asset, err := node.MintAsset(context.Background(), creator, [20]byte{}, registry.Metadata{Name: name, Symbol: "T", Royalty: 5})
	require.NoError(t, err)
	return asset.ID
}

func drain(ch <-chan events.Event) []string {
	var out []string
	for {
		select {
		case evt := <-ch:
			out = append(out, evt.EventType())
		default:
			return out
		}
	}
}

func TestNodeOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	node := newTestNode(t)
	creator, buyer := addr(0x01), addr(0x02)
	require.NoError(t, node.Credit(creator, big.NewInt(100)))
	require.NoError(t, node.Credit(buyer, big.NewInt(1_000)))
	asset := mintFor(t, node, creator, "one")

	ch, cancel := node.Feed().Subscribe(16)
	defer cancel()

	order, err := node.CreateOrder(ctx, creator, asset, "memo", 1_000)
	require.NoError(t, err)
	kind, id, err := node.ListingByAsset(asset)
	require.NoError(t, err)
	require.Equal(t, ListingOrder, kind)
	require.Equal(t, order.ID, id)

	filled, err := node.FillOrder(ctx, buyer, order.ID, 10)
	require.NoError(t, err)
	require.Equal(t, market.OrderFilled, filled.Status)

	holder, ok, err := node.AssetHolder(asset)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, buyer, holder)

	creatorBal, err := node.Balance(creator)
	require.NoError(t, err)
	// 100 - 20 fee + 900 proceeds + 100 royalty (creator is the default minter)
	require.Equal(t, int64(1_080), creatorBal.Int64())
	treasuryBal, err := node.Balance(treasury)
	require.NoError(t, err)
	require.Equal(t, int64(20), treasuryBal.Int64())

	require.Equal(t, []string{market.EventTypeOrderCreated, market.EventTypeOrderFilled}, drain(ch))

	_, err = node.Order(order.ID)
	require.ErrorIs(t, err, market.ErrOrderNotFound)
	_, err = node.FillOrder(ctx, buyer, order.ID, 10)
	require.ErrorIs(t, err, market.ErrOrderNotFound)
	kind, _, err = node.ListingByAsset(asset)
	require.NoError(t, err)
	require.Equal(t, ListingNone, kind)
}

func TestNodeFailedOperationLeavesNoEffects(t *testing.T) {
	ctx := context.Background()
	node := newTestNode(t)
	creator, stranger := addr(0x01), addr(0x03)
	require.NoError(t, node.Credit(stranger, big.NewInt(100)))
	asset := mintFor(t, node, creator, "one")

	ch, cancel := node.Feed().Subscribe(16)
	defer cancel()

	// The fee leg succeeds before the asset leg fails.
	_, err := node.CreateOrder(ctx, stranger, asset, "", 1_000)
	require.ErrorIs(t, err, market.ErrTokenTransferFailed)

	bal, err := node.Balance(stranger)
	require.NoError(t, err)
	require.Equal(t, int64(100), bal.Int64())
	treasuryBal, err := node.Balance(treasury)
	require.NoError(t, err)
	require.Zero(t, treasuryBal.Sign())
	kind, _, err := node.ListingByAsset(asset)
	require.NoError(t, err)
	require.Equal(t, ListingNone, kind)
	auth, err := crypto.DeriveAuthority(crypto.NamespaceOrder, asset)
	require.NoError(t, err)
	_, ok, err := node.State().VaultGet(auth.Address)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, drain(ch))
}

func TestNodeAuctionLifecycle(t *testing.T) {
	ctx := context.Background()
	node := newTestNode(t)
	creator, alice, bob := addr(0x01), addr(0x04), addr(0x05)
	require.NoError(t, node.Credit(creator, big.NewInt(10)))
	require.NoError(t, node.Credit(alice, big.NewInt(500)))
	require.NoError(t, node.Credit(bob, big.NewInt(500)))
	asset := mintFor(t, node, creator, "lot")

	auction, err := node.CreateAuction(ctx, creator, asset, "", 100, big.NewInt(nodeTestNow), big.NewInt(nodeTestNow+3_600))
	require.NoError(t, err)
	kind, _, err := node.ListingByAsset(asset)
	require.NoError(t, err)
	require.Equal(t, ListingAuction, kind)

	_, err = node.Bid(ctx, alice, auction.ID, 150)
	require.NoError(t, err)
	_, err = node.Bid(ctx, bob, auction.ID, 200)
	require.NoError(t, err)

	_, err = node.ResolveAuction(ctx, auction.ID, 0)
	require.ErrorIs(t, err, market.ErrAuctionNotEnded)

	node.SetNowFunc(func() int64 { return nodeTestNow + 3_600 })
	_, err = node.CancelAuction(ctx, creator, auction.ID)
	require.ErrorIs(t, err, market.ErrAuctionEnded)
	resolved, err := node.ResolveAuction(ctx, auction.ID, 0)
	require.NoError(t, err)
	require.Equal(t, market.AuctionResolved, resolved.Status)

	aliceBal, err := node.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, int64(500), aliceBal.Int64())
	bobBal, err := node.Balance(bob)
	require.NoError(t, err)
	require.Equal(t, int64(300), bobBal.Int64())
	creatorBal, err := node.Balance(creator)
	require.NoError(t, err)
	require.Equal(t, int64(10-2+200), creatorBal.Int64())
	holder, _, err := node.AssetHolder(asset)
	require.NoError(t, err)
	require.Equal(t, bob, holder)
}

func TestNodeConcurrentListingsShareTreasury(t *testing.T) {
	ctx := context.Background()
	node := newTestNode(t)
	const listings = 16
	assets := make([][20]byte, listings)
	creators := make([][20]byte, listings)
	for i := 0; i < listings; i++ {
		creators[i] = addr(byte(0x10 + i))
		require.NoError(t, node.Credit(creators[i], big.NewInt(1_000)))
		assets[i] = mintFor(t, node, creators[i], fmt.Sprintf("asset-%d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, listings)
	for i := 0; i < listings; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := node.CreateOrder(ctx, creators[i], assets[i], "", 500)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	treasuryBal, err := node.Balance(treasury)
	require.NoError(t, err)
	require.Equal(t, int64(listings*10), treasuryBal.Int64())
	require.Zero(t, node.locks.size())
}

func TestNodeHonoursPauses(t *testing.T) {
	node := newTestNode(t)
	node.Pauses().Set("registry", true)
	_, err := node.MintAsset(context.Background(), addr(0x01), [20]byte{}, registry.Metadata{Name: "a", Symbol: "b"})
	require.ErrorIs(t, err, registry.ErrModulePaused)
}

func TestNodeCancelledContext(t *testing.T) {
	node := newTestNode(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := node.MintAsset(ctx, addr(0x01), [20]byte{}, registry.Metadata{Name: "a", Symbol: "b"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewNodeValidatesConfig(t *testing.T) {
	_, err := NewNode(storage.NewMemDB(), Config{})
	require.Error(t, err)
	_, err = NewNode(storage.NewMemDB(), Config{Treasury: treasury, DepositPerByte: big.NewInt(-1)})
	require.Error(t, err)
}
