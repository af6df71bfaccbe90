package registry

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/common"
)

type mockState struct {
	assets map[[20]byte]*types.Asset
	nonces map[[20]byte]uint64
}

func newMockState() *mockState {
	return &mockState{assets: make(map[[20]byte]*types.Asset), nonces: make(map[[20]byte]uint64)}
}

func (m *mockState) AssetGet(id [20]byte) (*types.Asset, bool, error) {
	a, ok := m.assets[id]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func (m *mockState) AssetPut(a *types.Asset) error {
	m.assets[a.ID] = a.Clone()
	return nil
}

func (m *mockState) RegistryNonce(creator [20]byte) (uint64, error) {
	return m.nonces[creator], nil
}

func (m *mockState) SetRegistryNonce(creator [20]byte, nonce uint64) error {
	m.nonces[creator] = nonce
	return nil
}

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestRegistry() (*Registry, *mockState, *events.Buffer) {
	state := newMockState()
	buf := events.NewBuffer()
	r := New()
	r.SetState(state)
	r.SetEmitter(buf)
	return r, state, buf
}

func TestMintCreditsCreator(t *testing.T) {
	r, state, buf := newTestRegistry()
	creator := testAddress(0x01)
	asset, err := r.Mint(creator, [20]byte{}, Metadata{Name: "Genesis", Symbol: "GEN", URI: "ipfs://x", Royalty: 5})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if asset.Holder != creator || asset.Minter != creator {
		t.Fatalf("creator should hold and default as minter: %+v", asset)
	}
	if asset.ID != AssetID(creator, 0) {
		t.Fatalf("unexpected asset id")
	}
	if state.nonces[creator] != 1 {
		t.Fatalf("nonce not advanced")
	}
	second, err := r.Mint(creator, testAddress(0x02), Metadata{Name: "Second", Symbol: "GEN"})
	if err != nil {
		t.Fatalf("mint second: %v", err)
	}
	if second.ID == asset.ID {
		t.Fatalf("asset ids must be unique per nonce")
	}
	got := buf.Events()
	if len(got) != 2 || got[0].EventType() != events.TypeAssetMinted {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestMintRejectsRoyaltyAboveCeiling(t *testing.T) {
	r, state, _ := newTestRegistry()
	_, err := r.Mint(testAddress(0x01), [20]byte{}, Metadata{Name: "a", Symbol: "b", Royalty: 11})
	if !errors.Is(err, ErrRoyaltyExceeded) {
		t.Fatalf("expected royalty exceeded, got %v", err)
	}
	if len(state.assets) != 0 {
		t.Fatalf("nothing must be written on rejection")
	}
}

func TestMintValidatesMetadata(t *testing.T) {
	r, _, _ := newTestRegistry()
	cases := []Metadata{
		{Name: "", Symbol: "S"},
		{Name: strings.Repeat("n", MaxNameLength+1), Symbol: "S"},
		{Name: "n", Symbol: strings.Repeat("s", MaxSymbolLength+1)},
		{Name: "n", Symbol: "s", URI: strings.Repeat("u", MaxURILength+1)},
	}
	for i, meta := range cases {
		if _, err := r.Mint(testAddress(0x01), [20]byte{}, meta); !errors.Is(err, ErrMetadataCreateFailed) {
			t.Fatalf("case %d: expected metadata error, got %v", i, err)
		}
	}
}

func TestMintRejectsExistingID(t *testing.T) {
	r, state, _ := newTestRegistry()
	creator := testAddress(0x01)
	state.assets[AssetID(creator, 0)] = &types.Asset{ID: AssetID(creator, 0)}
	if _, err := r.Mint(creator, [20]byte{}, Metadata{Name: "a", Symbol: "b"}); !errors.Is(err, ErrMintFailed) {
		t.Fatalf("expected mint failed, got %v", err)
	}
}

func TestMintPaused(t *testing.T) {
	r, _, _ := newTestRegistry()
	r.SetPauses(common.NewPauses("registry"))
	if _, err := r.Mint(testAddress(0x01), [20]byte{}, Metadata{Name: "a", Symbol: "b"}); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
}
