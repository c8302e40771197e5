package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"market-service/internal/models"

	"github.com/google/uuid"
)

// CreateListing inserts a new listing. The active-listing count and the insert
// run in one transaction, serialized per seller with an advisory lock, so a
// seller cannot race past maxActive with concurrent creates.
func (s *Store) CreateListing(ctx context.Context, listing *models.Listing, maxActive int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", listing.SellerID.String()); err != nil {
		return fmt.Errorf("failed to lock seller: %w", err)
	}

	var active int
	err = tx.GetContext(ctx, &active,
		"SELECT COUNT(*) FROM listings WHERE seller_id = $1 AND expires_at > $2",
		listing.SellerID, listing.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to count active listings: %w", err)
	}

	if active >= maxActive {
		return models.ErrCapacityExceeded
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO listings (id, seller_id, item, price, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		listing.ID, listing.SellerID, listing.Item, listing.Price,
		listing.CreatedAt, listing.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}

	return tx.Commit()
}

// GetListingByID retrieves a listing by ID. Returns nil without error when the
// listing does not exist.
func (s *Store) GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.GetContext(ctx, &listing, "SELECT * FROM listings WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListAll retrieves every listing in stable insertion order
func (s *Store) ListAll(ctx context.Context) ([]models.Listing, error) {
	var listings []models.Listing
	err := s.db.SelectContext(ctx, &listings,
		"SELECT * FROM listings ORDER BY created_at, id")
	return listings, err
}

// ListActive retrieves listings that have not expired, in insertion order
func (s *Store) ListActive(ctx context.Context, now time.Time) ([]models.Listing, error) {
	var listings []models.Listing
	err := s.db.SelectContext(ctx, &listings,
		"SELECT * FROM listings WHERE expires_at > $1 ORDER BY created_at, id", now)
	return listings, err
}

// ListExpiredByOwner retrieves a seller's expired, uncollected listings
func (s *Store) ListExpiredByOwner(ctx context.Context, ownerID uuid.UUID, now time.Time) ([]models.Listing, error) {
	var listings []models.Listing
	err := s.db.SelectContext(ctx, &listings,
		"SELECT * FROM listings WHERE seller_id = $1 AND expires_at <= $2 ORDER BY created_at, id",
		ownerID, now)
	return listings, err
}

// DeleteByID removes a listing. Deleting a listing that is already gone is not
// an error; it was settled concurrently.
func (s *Store) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM listings WHERE id = $1", id)
	return err
}

// CompareAndDelete removes the listing only if it still exists with the given
// expiry fingerprint, as a single atomic statement. Reports whether a row was
// deleted. This is the sole synchronization primitive purchase settlement
// relies on: only one racing buyer's delete can win.
func (s *Store) CompareAndDelete(ctx context.Context, id uuid.UUID, expiresAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM listings WHERE id = $1 AND expires_at = $2", id, expiresAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CollectExpiredTx deletes an expired listing and records a pending return in
// one transaction. Reports whether the listing was still present. The item is
// handed back outside the transaction; until MarkReturnDelivered the return
// row keeps it recoverable.
func (s *Store) CollectExpiredTx(ctx context.Context, listing *models.Listing) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM listings WHERE id = $1 AND expires_at = $2",
		listing.ID, listing.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("failed to delete listing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO return_outbox (listing_id, owner_id, item, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (listing_id) DO NOTHING`,
		listing.ID, listing.SellerID, listing.Item)
	if err != nil {
		return false, fmt.Errorf("failed to record pending return: %w", err)
	}

	return true, tx.Commit()
}

// MarkReturnDelivered marks a pending return as handed back to its owner
func (s *Store) MarkReturnDelivered(ctx context.Context, listingID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE return_outbox SET delivered_at = NOW() WHERE listing_id = $1 AND delivered_at IS NULL",
		listingID)
	return err
}

// ListUndeliveredReturns retrieves pending returns that have not been handed
// back yet, oldest first
func (s *Store) ListUndeliveredReturns(ctx context.Context) ([]models.PendingReturn, error) {
	var returns []models.PendingReturn
	err := s.db.SelectContext(ctx, &returns,
		"SELECT * FROM return_outbox WHERE delivered_at IS NULL ORDER BY created_at")
	return returns, err
}
