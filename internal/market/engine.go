package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-service/internal/models"
	"market-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ListingStore is the durable listing table the engine mutates. Implemented
// by the Postgres store.
type ListingStore interface {
	CreateListing(ctx context.Context, listing *models.Listing, maxActive int) error
	GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListActive(ctx context.Context, now time.Time) ([]models.Listing, error)
	ListExpiredByOwner(ctx context.Context, ownerID uuid.UUID, now time.Time) ([]models.Listing, error)
	CompareAndDelete(ctx context.Context, id uuid.UUID, expiresAt time.Time) (bool, error)
	CollectExpiredTx(ctx context.Context, listing *models.Listing) (bool, error)
	MarkReturnDelivered(ctx context.Context, listingID uuid.UUID) error
}

// Ledger is the external account ledger. AdjustBalance applies fully or not
// at all; a negative delta that would overdraw fails with
// models.ErrInsufficientFunds.
type Ledger interface {
	GetBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error)
	AdjustBalance(ctx context.Context, ownerID uuid.UUID, delta decimal.Decimal) error
}

// Inventory is the per-owner item holding. GiveItem reports false when the
// item was not fully accepted; the engine then deposits via DepositFallback.
type Inventory interface {
	TakeItem(ctx context.Context, ownerID uuid.UUID, item models.ItemDescriptor) error
	GiveItem(ctx context.Context, ownerID uuid.UUID, item models.ItemDescriptor) (bool, error)
	DepositFallback(ctx context.Context, ownerID uuid.UUID, item models.ItemDescriptor) error
}

// Notifier publishes market events. All publishing is best-effort: failures
// are logged and never fail the operation that triggered them.
type Notifier interface {
	ListingCreated(ctx context.Context, event *models.ListingCreatedEvent) error
	ListingSold(ctx context.Context, event *models.ListingSoldEvent) error
	ListingExpired(ctx context.Context, event *models.ListingExpiredEvent) error
}

// Engine enforces the marketplace rules: listing caps, expiration, and atomic
// purchase settlement.
type Engine struct {
	store       ListingStore
	ledger      Ledger
	inventory   Inventory
	events      Notifier
	logger      *zap.Logger
	lifetime    time.Duration
	maxListings int
	now         func() time.Time
}

// NewEngine creates a market engine
func NewEngine(
	store ListingStore,
	ledger Ledger,
	inventory Inventory,
	events Notifier,
	lifetime time.Duration,
	maxListings int,
) *Engine {
	return &Engine{
		store:       store,
		ledger:      ledger,
		inventory:   inventory,
		events:      events,
		logger:      util.GetLogger(),
		lifetime:    lifetime,
		maxListings: maxListings,
		now:         time.Now,
	}
}

// CreateListing takes the item from the seller's holding and persists a new
// listing expiring after the configured lifetime. maxListings overrides the
// configured per-user cap when positive; callers resolve permission-scoped
// increases before invoking the engine. If persistence fails the item debit
// is rolled back so the item is not lost.
func (e *Engine) CreateListing(
	ctx context.Context,
	sellerID uuid.UUID,
	item models.ItemDescriptor,
	price decimal.Decimal,
	maxListings int,
) (*models.Listing, error) {
	ctx, span := util.StartSpan(ctx, "Engine.CreateListing")
	defer span.End()

	if item.ItemID == "" {
		util.ListingsCreateFailedTotal.WithLabelValues("invalid_item").Inc()
		return nil, models.ErrInvalidItem
	}
	if item.Quantity < 1 {
		util.ListingsCreateFailedTotal.WithLabelValues("invalid_quantity").Inc()
		return nil, models.ErrInvalidQuantity
	}
	if price.IsNegative() {
		util.ListingsCreateFailedTotal.WithLabelValues("invalid_price").Inc()
		return nil, models.ErrInvalidPrice
	}

	limit := maxListings
	if limit <= 0 {
		limit = e.maxListings
	}

	if err := e.inventory.TakeItem(ctx, sellerID, item); err != nil {
		util.ListingsCreateFailedTotal.WithLabelValues("take_item").Inc()
		return nil, fmt.Errorf("failed to take item from seller: %w", err)
	}

	now := e.now()
	listing := &models.Listing{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Item:      item,
		Price:     price,
		CreatedAt: now,
		ExpiresAt: now.Add(e.lifetime),
	}

	if err := e.store.CreateListing(ctx, listing, limit); err != nil {
		e.returnItem(ctx, sellerID, item)
		if errors.Is(err, models.ErrCapacityExceeded) {
			util.ListingsCreateFailedTotal.WithLabelValues("capacity").Inc()
			return nil, err
		}
		util.ListingsCreateFailedTotal.WithLabelValues("storage").Inc()
		return nil, fmt.Errorf("failed to persist listing: %w", err)
	}

	util.ListingsCreatedTotal.Inc()
	e.logger.Info("Listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.String("seller_id", sellerID.String()),
		zap.String("price", price.String()))

	event := &models.ListingCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeListingCreated,
			Timestamp: now,
		},
		ListingID: listing.ID,
		SellerID:  sellerID,
		Item:      item,
		Price:     price,
		ExpiresAt: listing.ExpiresAt,
	}
	if err := e.events.ListingCreated(ctx, event); err != nil {
		e.logger.Error("Failed to publish ListingCreated event", zap.Error(err))
	}

	return listing, nil
}

// Purchase settles a listing for the buyer: optimistic read, expiry and
// balance checks, then an atomic conditional delete followed by fund transfer
// and item delivery. Only one of N racing buyers can win the delete; the rest
// see ErrNoLongerAvailable with no funds moved.
func (e *Engine) Purchase(ctx context.Context, buyerID, listingID uuid.UUID) error {
	ctx, span := util.StartSpan(ctx, "Engine.Purchase")
	defer span.End()

	listing, err := e.store.GetListingByID(ctx, listingID)
	if err != nil {
		util.PurchasesFailedTotal.WithLabelValues("storage").Inc()
		return fmt.Errorf("failed to read listing: %w", err)
	}
	if listing == nil {
		util.PurchasesFailedTotal.WithLabelValues("gone").Inc()
		return models.ErrNoLongerAvailable
	}

	if listing.Expired(e.now()) {
		util.PurchasesFailedTotal.WithLabelValues("expired").Inc()
		return models.ErrNoLongerAvailable
	}

	balance, err := e.ledger.GetBalance(ctx, buyerID)
	if err != nil {
		util.PurchasesFailedTotal.WithLabelValues("ledger").Inc()
		return fmt.Errorf("failed to read buyer balance: %w", err)
	}
	if balance.LessThan(listing.Price) {
		util.PurchasesFailedTotal.WithLabelValues("insufficient_funds").Inc()
		return models.ErrInsufficientFunds
	}

	deleted, err := e.store.CompareAndDelete(ctx, listing.ID, listing.ExpiresAt)
	if err != nil {
		util.PurchasesFailedTotal.WithLabelValues("storage").Inc()
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if !deleted {
		util.PurchasesFailedTotal.WithLabelValues("lost_race").Inc()
		return models.ErrNoLongerAvailable
	}

	// The listing is gone; settlement must run to completion even if the
	// caller's context is torn down.
	settleCtx := context.WithoutCancel(ctx)
	start := time.Now()
	defer func() {
		util.PurchaseSettlementLatency.Observe(time.Since(start).Seconds())
	}()

	if err := e.ledger.AdjustBalance(settleCtx, buyerID, listing.Price.Neg()); err != nil {
		return e.settlementFailure(listing, buyerID, "debit buyer", err)
	}
	if err := e.ledger.AdjustBalance(settleCtx, listing.SellerID, listing.Price); err != nil {
		return e.settlementFailure(listing, buyerID, "credit seller", err)
	}

	if err := e.deliverItem(settleCtx, buyerID, listing.Item); err != nil {
		return e.settlementFailure(listing, buyerID, "deliver item", err)
	}

	util.PurchasesTotal.Inc()
	e.logger.Info("Purchase settled",
		zap.String("listing_id", listing.ID.String()),
		zap.String("buyer_id", buyerID.String()),
		zap.String("seller_id", listing.SellerID.String()),
		zap.String("price", listing.Price.String()))

	event := &models.ListingSoldEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeListingSold,
			Timestamp: e.now(),
		},
		ListingID: listing.ID,
		SellerID:  listing.SellerID,
		BuyerID:   buyerID,
		Item:      listing.Item,
		Price:     listing.Price,
	}
	if err := e.events.ListingSold(settleCtx, event); err != nil {
		e.logger.Error("Failed to publish ListingSold event", zap.Error(err))
	}

	return nil
}

// CollectExpired reclaims the owner's expired listings. For each one the
// delete and a durable return record commit together; the item hand-back
// happens after and is retried by the outbox worker if it fails here.
func (e *Engine) CollectExpired(ctx context.Context, ownerID uuid.UUID) ([]models.ItemDescriptor, error) {
	ctx, span := util.StartSpan(ctx, "Engine.CollectExpired")
	defer span.End()

	expired, err := e.store.ListExpiredByOwner(ctx, ownerID, e.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired listings: %w", err)
	}

	var collected []models.ItemDescriptor
	for i := range expired {
		listing := &expired[i]

		ok, err := e.store.CollectExpiredTx(ctx, listing)
		if err != nil {
			return collected, fmt.Errorf("failed to collect listing %s: %w", listing.ID, err)
		}
		if !ok {
			// Already purchased or collected concurrently.
			continue
		}

		if err := e.deliverItem(ctx, ownerID, listing.Item); err != nil {
			// The return row stays undelivered; the outbox worker retries.
			e.logger.Error("Failed to hand back expired item, leaving in outbox",
				zap.String("listing_id", listing.ID.String()),
				zap.String("owner_id", ownerID.String()),
				zap.Error(err))
			continue
		}

		if err := e.store.MarkReturnDelivered(ctx, listing.ID); err != nil {
			e.logger.Error("Failed to mark return delivered",
				zap.String("listing_id", listing.ID.String()),
				zap.Error(err))
		}

		util.ListingsCollectedTotal.Inc()
		collected = append(collected, listing.Item)

		event := &models.ListingExpiredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeListingExpired,
				Timestamp: e.now(),
			},
			ListingID: listing.ID,
			SellerID:  ownerID,
			Item:      listing.Item,
		}
		if err := e.events.ListingExpired(ctx, event); err != nil {
			e.logger.Error("Failed to publish ListingExpired event", zap.Error(err))
		}
	}

	return collected, nil
}

// ListActive returns the current active listing snapshot in insertion order
func (e *Engine) ListActive(ctx context.Context) ([]models.Listing, error) {
	return e.store.ListActive(ctx, e.now())
}

// deliverItem gives the item to the owner, falling back to the stash when the
// holding cannot accept it. Ownership of the item must never vanish.
func (e *Engine) deliverItem(ctx context.Context, ownerID uuid.UUID, item models.ItemDescriptor) error {
	accepted, err := e.inventory.GiveItem(ctx, ownerID, item)
	if err != nil {
		return fmt.Errorf("failed to give item: %w", err)
	}
	if !accepted {
		util.FallbackDepositsTotal.Inc()
		if err := e.inventory.DepositFallback(ctx, ownerID, item); err != nil {
			return fmt.Errorf("failed to deposit item to stash: %w", err)
		}
	}
	return nil
}

// returnItem undoes a listing-creation inventory debit
func (e *Engine) returnItem(ctx context.Context, sellerID uuid.UUID, item models.ItemDescriptor) {
	if err := e.deliverItem(ctx, sellerID, item); err != nil {
		e.logger.Error("Failed to return item after aborted listing",
			zap.String("seller_id", sellerID.String()),
			zap.String("item_id", item.ItemID),
			zap.Error(err))
	}
}

// settlementFailure records a settlement that left the store and ledger
// inconsistent. The listing is already deleted, so this cannot be rolled
// back; it is logged with every id needed for manual reconciliation.
func (e *Engine) settlementFailure(listing *models.Listing, buyerID uuid.UUID, step string, err error) error {
	util.SettlementInconsistenciesTotal.Inc()
	e.logger.Error("Settlement inconsistency",
		zap.String("step", step),
		zap.String("listing_id", listing.ID.String()),
		zap.String("seller_id", listing.SellerID.String()),
		zap.String("buyer_id", buyerID.String()),
		zap.String("price", listing.Price.String()),
		zap.String("item_id", listing.Item.ItemID),
		zap.Int("quantity", listing.Item.Quantity),
		zap.Error(err))
	return fmt.Errorf("%w: %s for listing %s: %v",
		models.ErrSettlementInconsistency, step, listing.ID, err)
}
