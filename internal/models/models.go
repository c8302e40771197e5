package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemDescriptor is an opaque description of a traded good. The engine never
// writes display text into Metadata; presentation is computed at read time.
type ItemDescriptor struct {
	ItemID   string            `json:"item_id"`
	Quantity int               `json:"quantity"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Value serializes the descriptor to a JSON blob for storage.
func (d ItemDescriptor) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan deserializes a stored JSON blob.
func (d *ItemDescriptor) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("cannot scan item descriptor from %T", src)
	}
}

// Listing is a seller's offer of an item at a price, with a fixed lifetime.
// A listing is immutable except for its existence: it is removed either by a
// successful purchase or by expiration collection.
type Listing struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	SellerID  uuid.UUID       `db:"seller_id" json:"seller_id"`
	Item      ItemDescriptor  `db:"item" json:"item"`
	Price     decimal.Decimal `db:"price" json:"price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	ExpiresAt time.Time       `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the listing is no longer purchasable at the given
// instant. A listing expires at exactly ExpiresAt.
func (l *Listing) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// PendingReturn is a durable record that an expired listing's item still has
// to be handed back to its owner. Rows are written in the same transaction
// that deletes the listing, so a crash between delete and hand-back cannot
// lose the item.
type PendingReturn struct {
	ListingID   uuid.UUID      `db:"listing_id" json:"listing_id"`
	OwnerID     uuid.UUID      `db:"owner_id" json:"owner_id"`
	Item        ItemDescriptor `db:"item" json:"item"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	DeliveredAt *time.Time     `db:"delivered_at" json:"delivered_at,omitempty"`
}
