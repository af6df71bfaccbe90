package explorer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	KindOrder   = "order"
	KindAuction = "auction"
)

// Amounts are stored as canonical decimal strings: postgres has no unsigned
// 64-bit column type.

// ListingEvent is one committed transition of an order or auction.
type ListingEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence  int64     `gorm:"index"`
	ListingID string    `gorm:"size:64;index"`
	Kind      string    `gorm:"size:16;index"`
	EventType string    `gorm:"size:48"`
	Label     string    `gorm:"size:48"`
	Asset     string    `gorm:"size:64;index"`
	Creator   string    `gorm:"size:64"`
	Actor     string    `gorm:"size:64"`
	Price     string    `gorm:"size:20"`
	Status    string    `gorm:"size:16"`
	Memo      string    `gorm:"size:256"`
	CreatedAt time.Time
}

// Settlement records a filled order or resolved auction.
type Settlement struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence  int64     `gorm:"index"`
	ListingID string    `gorm:"size:64;index"`
	Kind      string    `gorm:"size:16"`
	Asset     string    `gorm:"size:64;index"`
	Seller    string    `gorm:"size:64;index"`
	Buyer     string    `gorm:"size:64;index"`
	Price     string    `gorm:"size:20"`
	Royalty   string    `gorm:"size:20"`
	Proceeds  string    `gorm:"size:20"`
	SettledAt time.Time `gorm:"index"`
}

// MintedAsset records a registry mint.
type MintedAsset struct {
	Asset         string `gorm:"size:64;primaryKey"`
	Creator       string `gorm:"size:64;index"`
	Minter        string `gorm:"size:64"`
	Symbol        string `gorm:"size:10"`
	URI           string `gorm:"size:200"`
	RoyaltyPoints uint16
	MintedAt      time.Time
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ListingEvent{}, &Settlement{}, &MintedAsset{})
}
