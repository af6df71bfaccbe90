package state

var (
	accountPrefix       = []byte("account/")
	assetPrefix         = []byte("asset/")
	registryNoncePrefix = []byte("registry/nonce/")
	orderPrefix         = []byte("market/order/")
	auctionPrefix       = []byte("market/auction/")
	vaultPrefix         = []byte("market/vault/")
	listingPrefix       = []byte("market/listing/")
)

func prefixed(prefix []byte, id [20]byte) []byte {
	buf := make([]byte, len(prefix)+len(id))
	copy(buf, prefix)
	copy(buf[len(prefix):], id[:])
	return buf
}

func AccountKey(addr [20]byte) []byte       { return prefixed(accountPrefix, addr) }
func AssetKey(id [20]byte) []byte           { return prefixed(assetPrefix, id) }
func RegistryNonceKey(addr [20]byte) []byte { return prefixed(registryNoncePrefix, addr) }
func OrderKey(id [20]byte) []byte           { return prefixed(orderPrefix, id) }
func AuctionKey(id [20]byte) []byte         { return prefixed(auctionPrefix, id) }
func VaultKey(authority [20]byte) []byte    { return prefixed(vaultPrefix, authority) }
func ListingKey(asset [20]byte) []byte      { return prefixed(listingPrefix, asset) }
