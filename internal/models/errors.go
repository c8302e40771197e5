package models

import "errors"

var (
	// ErrInvalidPrice indicates a negative listing price.
	ErrInvalidPrice = errors.New("price must not be negative")
	// ErrInvalidQuantity indicates an item quantity below one.
	ErrInvalidQuantity = errors.New("item quantity must be at least 1")
	// ErrInvalidItem indicates an empty item descriptor.
	ErrInvalidItem = errors.New("item is empty")
	// ErrCapacityExceeded indicates the seller is already at the listing limit.
	ErrCapacityExceeded = errors.New("seller is at the maximum number of listings")
	// ErrInsufficientFunds indicates the buyer cannot cover the listing price.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientHoldings indicates the seller does not hold enough of the item.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrNoLongerAvailable indicates the listing is gone or expired. Expected
	// under concurrent purchases; callers may retry with another listing.
	ErrNoLongerAvailable = errors.New("listing no longer available")
	// ErrSettlementInconsistency indicates funds moved but the paired effect
	// could not complete. Fatal-class; logged with full ids for reconciliation.
	ErrSettlementInconsistency = errors.New("settlement inconsistency")
)
