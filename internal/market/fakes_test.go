package market

import (
	"context"
	"sync"
	"time"

	"market-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory listing store with the same atomicity guarantees
// as the Postgres implementation: CompareAndDelete is a single locked
// check-and-remove.
type fakeStore struct {
	mu         sync.Mutex
	listings   map[uuid.UUID]models.Listing
	order      []uuid.UUID
	returns    map[uuid.UUID]models.PendingReturn
	delivered  map[uuid.UUID]bool
	failCreate error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		listings:  make(map[uuid.UUID]models.Listing),
		returns:   make(map[uuid.UUID]models.PendingReturn),
		delivered: make(map[uuid.UUID]bool),
	}
}

func (s *fakeStore) CreateListing(ctx context.Context, listing *models.Listing, maxActive int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCreate != nil {
		return s.failCreate
	}

	active := 0
	for _, l := range s.listings {
		if l.SellerID == listing.SellerID && l.ExpiresAt.After(listing.CreatedAt) {
			active++
		}
	}
	if active >= maxActive {
		return models.ErrCapacityExceeded
	}

	s.listings[listing.ID] = *listing
	s.order = append(s.order, listing.ID)
	return nil
}

func (s *fakeStore) GetListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *fakeStore) ListActive(ctx context.Context, now time.Time) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Listing
	for _, id := range s.order {
		if l, ok := s.listings[id]; ok && l.ExpiresAt.After(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *fakeStore) ListExpiredByOwner(ctx context.Context, ownerID uuid.UUID, now time.Time) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Listing
	for _, id := range s.order {
		if l, ok := s.listings[id]; ok && l.SellerID == ownerID && !l.ExpiresAt.After(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *fakeStore) CompareAndDelete(ctx context.Context, id uuid.UUID, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok || !l.ExpiresAt.Equal(expiresAt) {
		return false, nil
	}
	delete(s.listings, id)
	return true, nil
}

func (s *fakeStore) CollectExpiredTx(ctx context.Context, listing *models.Listing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[listing.ID]
	if !ok || !l.ExpiresAt.Equal(listing.ExpiresAt) {
		return false, nil
	}
	delete(s.listings, listing.ID)
	s.returns[listing.ID] = models.PendingReturn{
		ListingID: listing.ID,
		OwnerID:   listing.SellerID,
		Item:      listing.Item,
		CreatedAt: time.Now(),
	}
	return true, nil
}

func (s *fakeStore) MarkReturnDelivered(ctx context.Context, listingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delivered[listingID] = true
	return nil
}

// fakeLedger keeps balances in memory; adjustments that would overdraw are
// rejected atomically, like the redis Lua script.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]decimal.Decimal
	// adjustErr fails the next AdjustBalance call, simulating a ledger
	// outage mid-settlement.
	adjustErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[uuid.UUID]decimal.Decimal)}
}

func (l *fakeLedger) set(ownerID uuid.UUID, balance decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[ownerID] = balance
}

func (l *fakeLedger) balance(ownerID uuid.UUID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[ownerID]
}

func (l *fakeLedger) GetBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[ownerID], nil
}

func (l *fakeLedger) AdjustBalance(ctx context.Context, ownerID uuid.UUID, delta decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.adjustErr != nil {
		err := l.adjustErr
		l.adjustErr = nil
		return err
	}

	next := l.balances[ownerID].Add(delta)
	if next.IsNegative() {
		return models.ErrInsufficientFunds
	}
	l.balances[ownerID] = next
	return nil
}

// fakeInventory models bounded holdings with an unbounded stash, mirroring
// the Postgres holdings adapter.
type fakeInventory struct {
	mu       sync.Mutex
	holdings map[uuid.UUID]map[string]int
	stash    map[uuid.UUID][]models.ItemDescriptor
	capacity int
}

func newFakeInventory(capacity int) *fakeInventory {
	return &fakeInventory{
		holdings: make(map[uuid.UUID]map[string]int),
		stash:    make(map[uuid.UUID][]models.ItemDescriptor),
		capacity: capacity,
	}
}

func (i *fakeInventory) grant(ownerID uuid.UUID, itemID string, quantity int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.holdings[ownerID] == nil {
		i.holdings[ownerID] = make(map[string]int)
	}
	i.holdings[ownerID][itemID] += quantity
}

func (i *fakeInventory) held(ownerID uuid.UUID, itemID string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.holdings[ownerID][itemID]
}

func (i *fakeInventory) stashed(ownerID uuid.UUID) []models.ItemDescriptor {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stash[ownerID]
}

func (i *fakeInventory) TakeItem(ctx context.Context, ownerID uuid.UUID, item models.ItemDescriptor) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	held := i.holdings[ownerID][item.ItemID]
	if held < item.Quantity {
		return models.ErrInsufficientHoldings
	}
	if held == item.Quantity {
		delete(i.holdings[ownerID], item.ItemID)
	} else {
		i.holdings[ownerID][item.ItemID] = held - item.Quantity
	}
	return nil
}

func (i *fakeInventory) GiveItem(ctx context.Context, ownerID uuid.UUID, item models.ItemDescriptor) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.holdings[ownerID] == nil {
		i.holdings[ownerID] = make(map[string]int)
	}
	if _, ok := i.holdings[ownerID][item.ItemID]; !ok && len(i.holdings[ownerID]) >= i.capacity {
		return false, nil
	}
	i.holdings[ownerID][item.ItemID] += item.Quantity
	return true, nil
}

func (i *fakeInventory) DepositFallback(ctx context.Context, ownerID uuid.UUID, item models.ItemDescriptor) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.stash[ownerID] = append(i.stash[ownerID], item)
	return nil
}

// fakeNotifier records published events
type fakeNotifier struct {
	mu      sync.Mutex
	created []*models.ListingCreatedEvent
	sold    []*models.ListingSoldEvent
	expired []*models.ListingExpiredEvent
}

func (n *fakeNotifier) ListingCreated(ctx context.Context, event *models.ListingCreatedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, event)
	return nil
}

func (n *fakeNotifier) ListingSold(ctx context.Context, event *models.ListingSoldEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sold = append(n.sold, event)
	return nil
}

func (n *fakeNotifier) ListingExpired(ctx context.Context, event *models.ListingExpiredEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, event)
	return nil
}

func (n *fakeNotifier) soldEvents() []*models.ListingSoldEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sold
}
