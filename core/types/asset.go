package types

// Asset is the registry entry for one unique asset. Exactly one unit exists
// and Holder names the account currently holding it.
type Asset struct {
	ID            [20]byte `json:"id"`
	Creator       [20]byte `json:"creator"`
	Minter        [20]byte `json:"minter"`
	Name          string   `json:"name"`
	Symbol        string   `json:"symbol"`
	URI           string   `json:"uri"`
	RoyaltyPoints uint16   `json:"royaltyPoints"`
	Holder        [20]byte `json:"holder"`
}

// Clone returns a copy of the asset entry.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}
