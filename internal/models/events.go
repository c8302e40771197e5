package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeListingCreated = "LISTING_CREATED"
	EventTypeListingSold    = "LISTING_SOLD"
	EventTypeListingExpired = "LISTING_EXPIRED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ListingCreatedEvent published when a seller lists an item
type ListingCreatedEvent struct {
	BaseEvent
	ListingID uuid.UUID       `json:"listing_id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	Item      ItemDescriptor  `json:"item"`
	Price     decimal.Decimal `json:"price"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ListingSoldEvent published after purchase settlement completes. Consumed by
// the notify worker to tell the seller their item sold.
type ListingSoldEvent struct {
	BaseEvent
	ListingID uuid.UUID       `json:"listing_id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	BuyerID   uuid.UUID       `json:"buyer_id"`
	Item      ItemDescriptor  `json:"item"`
	Price     decimal.Decimal `json:"price"`
}

// ListingExpiredEvent published when an expired listing is collected
type ListingExpiredEvent struct {
	BaseEvent
	ListingID uuid.UUID      `json:"listing_id"`
	SellerID  uuid.UUID      `json:"seller_id"`
	Item      ItemDescriptor `json:"item"`
}
