package crypto

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// Namespace scopes a derived authority to one listing kind.
type Namespace string

const (
	NamespaceOrder   Namespace = "order"
	NamespaceAuction Namespace = "auction"
)

// authorityDomain separates authority digests from every other keccak use in
// the market state.
var authorityDomain = []byte("nftmarket/authority")

var (
	ErrUnknownNamespace  = errors.New("authority: unknown namespace")
	ErrInvalidSeeds      = errors.New("authority: seeds derive an on-curve point")
	ErrNoViableBump      = errors.New("authority: no viable bump")
	ErrAuthorityMismatch = errors.New("authority: proof does not match address")
)

// Valid reports whether the namespace is one of the listing kinds.
func (n Namespace) Valid() bool {
	switch n {
	case NamespaceOrder, NamespaceAuction:
		return true
	default:
		return false
	}
}

// AuthorityProof is what a caller presents instead of a signature to move value
// held by a derived authority.
type AuthorityProof struct {
	Namespace Namespace
	Asset     [AddressLength]byte
	Bump      uint8
}

// Authority is the custodial identity of one listing vault.
type Authority struct {
	Namespace Namespace
	Asset     [AddressLength]byte
	Address   [AddressLength]byte
	Bump      uint8
}

// Proof returns the derivation proof for the authority.
func (a Authority) Proof() AuthorityProof {
	return AuthorityProof{Namespace: a.Namespace, Asset: a.Asset, Bump: a.Bump}
}

func authorityDigest(ns Namespace, asset [AddressLength]byte, bump uint8) []byte {
	return crypto.Keccak256(authorityDomain, []byte(ns), asset[:], []byte{bump})
}

// onCurve reports whether digest is the x coordinate of a secp256k1 point, in
// which case some keypair could claim it.
func onCurve(digest []byte) bool {
	params := crypto.S256().Params()
	x := new(big.Int).SetBytes(digest)
	if x.Cmp(params.P) >= 0 {
		return false
	}
	// y^2 = x^3 + 7 (mod p)
	rhs := new(big.Int).Exp(x, big.NewInt(3), params.P)
	rhs.Add(rhs, big.NewInt(7))
	rhs.Mod(rhs, params.P)
	return new(big.Int).ModSqrt(rhs, params.P) != nil
}

// CreateAuthorityAddress derives the address for an explicit bump. It fails
// with ErrInvalidSeeds when the digest lands on the curve.
func CreateAuthorityAddress(ns Namespace, asset [AddressLength]byte, bump uint8) ([AddressLength]byte, error) {
	var out [AddressLength]byte
	if !ns.Valid() {
		return out, fmt.Errorf("%w: %q", ErrUnknownNamespace, ns)
	}
	digest := authorityDigest(ns, asset, bump)
	if onCurve(digest) {
		return out, ErrInvalidSeeds
	}
	copy(out[:], digest[len(digest)-AddressLength:])
	return out, nil
}

// DeriveAuthority searches bumps from 255 downwards and returns the first
// off-curve address. The result is a pure function of its inputs.
func DeriveAuthority(ns Namespace, asset [AddressLength]byte) (Authority, error) {
	if !ns.Valid() {
		return Authority{}, fmt.Errorf("%w: %q", ErrUnknownNamespace, ns)
	}
	for bump := 255; bump >= 0; bump-- {
		addr, err := CreateAuthorityAddress(ns, asset, uint8(bump))
		if errors.Is(err, ErrInvalidSeeds) {
			continue
		}
		if err != nil {
			return Authority{}, err
		}
		return Authority{Namespace: ns, Asset: asset, Address: addr, Bump: uint8(bump)}, nil
	}
	return Authority{}, ErrNoViableBump
}

// VerifyAuthority checks that the proof re-derives the expected address.
func VerifyAuthority(proof AuthorityProof, expected [AddressLength]byte) error {
	addr, err := CreateAuthorityAddress(proof.Namespace, proof.Asset, proof.Bump)
	if err != nil {
		return err
	}
	if addr != expected {
		return ErrAuthorityMismatch
	}
	return nil
}
