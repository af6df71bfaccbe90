package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/common"
)

const (
	// MaxRoyalty is the highest royalty configuration accepted at mint time.
	MaxRoyalty = 10

	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200

	moduleName = "registry"
)

var (
	ErrRoyaltyExceeded      = errors.New("registry: royalty exceeds ceiling")
	ErrMetadataCreateFailed = errors.New("registry: invalid metadata")
	ErrMintFailed           = errors.New("registry: mint failed")
	ErrModulePaused         = errors.New("registry: module paused")

	errNilState = errors.New("registry: state not configured")
)

type registryState interface {
	AssetGet(id [20]byte) (*types.Asset, bool, error)
	AssetPut(*types.Asset) error
	RegistryNonce(creator [20]byte) (uint64, error)
	SetRegistryNonce(creator [20]byte, nonce uint64) error
}

// Metadata describes an asset at registration.
type Metadata struct {
	Name    string
	Symbol  string
	URI     string
	Royalty uint16
}

// Registry mints unique assets. Each asset exists as a single unit credited
// to its creator.
type Registry struct {
	state   registryState
	emitter events.Emitter
	pauses  common.PauseView
}

func New() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

func (r *Registry) SetState(state registryState) { r.state = state }

func (r *Registry) SetPauses(p common.PauseView) { r.pauses = p }

func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// AssetID derives the identifier of the nonce-th asset minted by creator.
func AssetID(creator [20]byte, nonce uint64) [20]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	digest := ethcrypto.Keccak256([]byte("asset"), creator[:], buf[:])
	var id [20]byte
	copy(id[:], digest[12:])
	return id
}

func validateMetadata(meta Metadata) (Metadata, error) {
	if meta.Royalty > MaxRoyalty {
		return Metadata{}, ErrRoyaltyExceeded
	}
	meta.Name = strings.TrimSpace(meta.Name)
	meta.Symbol = strings.TrimSpace(meta.Symbol)
	meta.URI = strings.TrimSpace(meta.URI)
	switch {
	case meta.Name == "" || len(meta.Name) > MaxNameLength:
		return Metadata{}, fmt.Errorf("%w: name must be 1-%d bytes", ErrMetadataCreateFailed, MaxNameLength)
	case meta.Symbol == "" || len(meta.Symbol) > MaxSymbolLength:
		return Metadata{}, fmt.Errorf("%w: symbol must be 1-%d bytes", ErrMetadataCreateFailed, MaxSymbolLength)
	case len(meta.URI) > MaxURILength:
		return Metadata{}, fmt.Errorf("%w: uri exceeds %d bytes", ErrMetadataCreateFailed, MaxURILength)
	}
	return meta, nil
}

// Mint registers a new asset for creator. minter is the update authority and
// receives royalties at settlement; the zero address defaults to creator.
func (r *Registry) Mint(creator, minter [20]byte, meta Metadata) (*types.Asset, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(r.pauses, moduleName); err != nil {
		return nil, ErrModulePaused
	}
	meta, err := validateMetadata(meta)
	if err != nil {
		return nil, err
	}
	if minter == ([20]byte{}) {
		minter = creator
	}
	nonce, err := r.state.RegistryNonce(creator)
	if err != nil {
		return nil, err
	}
	id := AssetID(creator, nonce)
	if _, exists, err := r.state.AssetGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: asset %x already minted", ErrMintFailed, id)
	}
	asset := &types.Asset{
		ID:            id,
		Creator:       creator,
		Minter:        minter,
		Name:          meta.Name,
		Symbol:        meta.Symbol,
		URI:           meta.URI,
		RoyaltyPoints: meta.Royalty,
		Holder:        creator,
	}
	if err := r.state.AssetPut(asset); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMintFailed, err)
	}
	if err := r.state.SetRegistryNonce(creator, nonce+1); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.AssetMinted{
		Asset:         id,
		Creator:       creator,
		Minter:        minter,
		Symbol:        asset.Symbol,
		URI:           asset.URI,
		RoyaltyPoints: asset.RoyaltyPoints,
	})
	return asset.Clone(), nil
}

// Asset returns the registry entry for id.
func (r *Registry) Asset(id [20]byte) (*types.Asset, bool, error) {
	if r == nil || r.state == nil {
		return nil, false, errNilState
	}
	return r.state.AssetGet(id)
}
