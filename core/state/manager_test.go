package state

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/market"
	"nftmarket/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestCopyBuffersWritesUntilCommit(t *testing.T) {
	root := newTestManager(t)
	alice := testAddr(0x01)
	require.NoError(t, root.SetBalance(alice, big.NewInt(100)))

	spec := root.Copy()
	require.NoError(t, spec.SetBalance(alice, big.NewInt(40)))

	committed, err := root.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, int64(100), committed.Int64())

	speculative, err := spec.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, int64(40), speculative.Int64())

	require.NoError(t, spec.Commit())
	committed, err = root.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, int64(40), committed.Int64())
}

func TestDiscardedCopyLeavesNoTrace(t *testing.T) {
	root := newTestManager(t)
	spec := root.Copy()
	require.NoError(t, spec.AssetPut(&types.Asset{ID: testAddr(0xA1), Holder: testAddr(0x01)}))
	require.Equal(t, 1, spec.Pending())

	_, ok, err := root.AssetGet(testAddr(0xA1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCommitDetectsConflict(t *testing.T) {
	root := newTestManager(t)
	treasury := testAddr(0xFE)
	require.NoError(t, root.SetBalance(treasury, big.NewInt(0)))

	first := root.Copy()
	second := root.Copy()
	_, err := first.Balance(treasury)
	require.NoError(t, err)
	_, err = second.Balance(treasury)
	require.NoError(t, err)
	require.NoError(t, first.SetBalance(treasury, big.NewInt(10)))
	require.NoError(t, second.SetBalance(treasury, big.NewInt(20)))

	require.NoError(t, first.Commit())
	require.ErrorIs(t, second.Commit(), ErrConflict)

	bal, err := root.Balance(treasury)
	require.NoError(t, err)
	require.Equal(t, int64(10), bal.Int64())
}

func TestCommitDetectsConflictOnAbsentKey(t *testing.T) {
	root := newTestManager(t)
	asset := testAddr(0xA2)
	spec := root.Copy()
	_, listed, err := spec.ListingGet(asset)
	require.NoError(t, err)
	require.False(t, listed)
	require.NoError(t, spec.ListingPut(asset, testAddr(0x10)))

	require.NoError(t, root.ListingPut(asset, testAddr(0x11)))
	require.ErrorIs(t, spec.Commit(), ErrConflict)
}

func TestCommitTwiceRejected(t *testing.T) {
	root := newTestManager(t)
	spec := root.Copy()
	require.NoError(t, spec.Commit())
	require.Error(t, spec.Commit())
	require.NoError(t, root.Commit())
}

func TestDeleteInCopy(t *testing.T) {
	root := newTestManager(t)
	asset := testAddr(0xA3)
	require.NoError(t, root.ListingPut(asset, testAddr(0x10)))
	spec := root.Copy()
	require.NoError(t, spec.ListingDelete(asset))
	_, ok, err := spec.ListingGet(asset)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, spec.Commit())
	_, ok, err = root.ListingGet(asset)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMarketRecordsRoundTrip(t *testing.T) {
	root := newTestManager(t)
	order := &market.Order{ID: testAddr(0x20), Creator: testAddr(0x01), Asset: testAddr(0xA1), Memo: "m", Price: 5, Bump: 254}
	require.NoError(t, root.OrderPut(order))
	got, ok, err := root.OrderGet(order.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, order, got)

	auction := &market.Auction{
		ID:             testAddr(0x21),
		Creator:        testAddr(0x01),
		Asset:          testAddr(0xA2),
		RefundReceiver: testAddr(0x01),
		Price:          7,
		StartTime:      big.NewInt(1),
		EndTime:        new(big.Int).Lsh(big.NewInt(1), 100),
		Bump:           255,
	}
	require.NoError(t, root.AuctionPut(auction))
	gotAuction, ok, err := root.AuctionGet(auction.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, auction.EndTime.Cmp(gotAuction.EndTime))
	require.Equal(t, auction.RefundReceiver, gotAuction.RefundReceiver)

	vault := &market.Vault{Authority: testAddr(0x20), Namespace: crypto.NamespaceOrder, Asset: testAddr(0xA1), Bump: 254, Balance: big.NewInt(3), Deposit: big.NewInt(4)}
	require.NoError(t, root.VaultPut(vault))
	gotVault, ok, err := root.VaultGet(vault.Authority)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, crypto.NamespaceOrder, gotVault.Namespace)
	require.Equal(t, int64(3), gotVault.Balance.Int64())
	require.Equal(t, int64(4), gotVault.Deposit.Int64())
}

func TestStateOnPersistentBackend(t *testing.T) {
	db, err := storage.NewLevelDB(t.TempDir())
	require.NoError(t, err)
	defer db.Close()
	root := NewManager(db)
	spec := root.Copy()
	require.NoError(t, spec.SetBalance(testAddr(0x01), big.NewInt(9)))
	require.NoError(t, spec.Commit())
	bal, err := root.Balance(testAddr(0x01))
	require.NoError(t, err)
	require.Equal(t, int64(9), bal.Int64())
}
