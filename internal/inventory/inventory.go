package inventory

import (
	"context"
	"database/sql"
	"fmt"

	"market-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Holdings is the per-owner item inventory backed by Postgres. Each owner has
// a bounded number of item slots; one slot per distinct item id. Items that
// cannot be accepted go to the owner's stash via DepositFallback so ownership
// never vanishes.
type Holdings struct {
	db       *sqlx.DB
	capacity int
}

// New creates a holdings inventory with the given slot capacity per owner
func New(db *sqlx.DB, capacity int) *Holdings {
	return &Holdings{db: db, capacity: capacity}
}

// TakeItem removes the item quantity from the owner's holding. The row is
// locked for the check-and-decrement so concurrent takes cannot drive the
// count negative.
func (h *Holdings) TakeItem(ctx context.Context, ownerID uuid.UUID, item models.ItemDescriptor) error {
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var held int
	err = tx.GetContext(ctx, &held,
		"SELECT quantity FROM holdings WHERE owner_id = $1 AND item_id = $2 FOR UPDATE",
		ownerID, item.ItemID)
	if err == sql.ErrNoRows {
		return models.ErrInsufficientHoldings
	}
	if err != nil {
		return fmt.Errorf("failed to lock holding: %w", err)
	}

	if held < item.Quantity {
		return models.ErrInsufficientHoldings
	}

	if held == item.Quantity {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM holdings WHERE owner_id = $1 AND item_id = $2",
			ownerID, item.ItemID)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE holdings SET quantity = quantity - $1 WHERE owner_id = $2 AND item_id = $3",
			item.Quantity, ownerID, item.ItemID)
	}
	if err != nil {
		return fmt.Errorf("failed to take item: %w", err)
	}

	return tx.Commit()
}

// GiveItem adds the item to the owner's holding. Reports false without error
// when the owner has no free slot for a new item id; the caller then deposits
// via DepositFallback.
func (h *Holdings) GiveItem(ctx context.Context, ownerID uuid.UUID, item models.ItemDescriptor) (bool, error) {
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serializes the slot count against concurrent gives to the same owner;
	// without it two new item ids could both see a free slot and exceed capacity.
	if _, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", ownerID.String()); err != nil {
		return false, fmt.Errorf("failed to lock owner: %w", err)
	}

	var existing int
	err = tx.GetContext(ctx, &existing,
		"SELECT COUNT(*) FROM holdings WHERE owner_id = $1 AND item_id = $2",
		ownerID, item.ItemID)
	if err != nil {
		return false, fmt.Errorf("failed to check holding: %w", err)
	}

	if existing == 0 {
		var slots int
		err = tx.GetContext(ctx, &slots,
			"SELECT COUNT(*) FROM holdings WHERE owner_id = $1", ownerID)
		if err != nil {
			return false, fmt.Errorf("failed to count slots: %w", err)
		}
		if slots >= h.capacity {
			return false, nil
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO holdings (owner_id, item_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, item_id) DO UPDATE SET quantity = holdings.quantity + EXCLUDED.quantity`,
		ownerID, item.ItemID, item.Quantity)
	if err != nil {
		return false, fmt.Errorf("failed to give item: %w", err)
	}

	return true, tx.Commit()
}

// DepositFallback places the item in the owner's stash unconditionally. The
// stash has no capacity bound; it exists so an item with no free holding slot
// is never discarded.
func (h *Holdings) DepositFallback(ctx context.Context, ownerID uuid.UUID, item models.ItemDescriptor) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO stash (owner_id, item, created_at)
		VALUES ($1, $2, NOW())`,
		ownerID, item)
	if err != nil {
		return fmt.Errorf("failed to deposit to stash: %w", err)
	}
	return nil
}
