package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-service/internal/models"

	"github.com/google/uuid"
)

// NameResolver maps an owner id to a display name. Unknown owners get a
// placeholder.
type NameResolver func(ownerID uuid.UUID) string

// CatalogEntry is a listing projected for display. All display text is
// computed here at read time; the stored item descriptor is never touched.
type CatalogEntry struct {
	Listing    models.Listing `json:"listing"`
	Seller     string         `json:"seller"`
	PriceLabel string         `json:"price_label"`
	TimeLeft   string         `json:"time_left"`
}

// CatalogPage is one window over the active listings
type CatalogPage struct {
	Page    int            `json:"page"`
	MaxPage int            `json:"max_page"`
	Entries []CatalogEntry `json:"entries"`
}

// CatalogView paginates active listings for presentation. Page state is held
// explicitly and updated in place; navigation wraps around at the ends. The
// view is shared by every front-end goroutine, so page state is guarded by a
// mutex.
type CatalogView struct {
	engine *Engine

	mu       sync.Mutex
	pageSize int
	page     int
	names    NameResolver
	now      func() time.Time
}

// NewCatalogView creates a catalog view over the engine's active listings.
// A pageSize below one falls back to the default of 45 slots.
func NewCatalogView(engine *Engine, pageSize int, names NameResolver) *CatalogView {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if names == nil {
		names = func(ownerID uuid.UUID) string {
			return "seller-" + ownerID.String()[:8]
		}
	}
	return &CatalogView{
		engine:   engine,
		pageSize: pageSize,
		names:    names,
		now:      time.Now,
	}
}

// DefaultPageSize is the catalog window size when none is configured
const DefaultPageSize = 45

// Current renders the current page from a fresh active-listing snapshot
func (v *CatalogView) Current(ctx context.Context) (*CatalogPage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current(ctx)
}

// Seek renders a specific page and makes it the current one
func (v *CatalogView) Seek(ctx context.Context, page int) (*CatalogPage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if page < 0 {
		page = 0
	}
	v.page = page
	return v.current(ctx)
}

// NextPage advances to the next page, wrapping to the first past the last
func (v *CatalogView) NextPage(ctx context.Context) (*CatalogPage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	current, err := v.current(ctx)
	if err != nil {
		return nil, err
	}
	if v.page >= current.MaxPage {
		v.page = 0
	} else {
		v.page++
	}
	return v.current(ctx)
}

// PrevPage moves to the previous page, wrapping to the last before the first
func (v *CatalogView) PrevPage(ctx context.Context) (*CatalogPage, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	current, err := v.current(ctx)
	if err != nil {
		return nil, err
	}
	if v.page == 0 {
		v.page = current.MaxPage
	} else {
		v.page--
	}
	return v.current(ctx)
}

// current must be called with the mutex held
func (v *CatalogView) current(ctx context.Context) (*CatalogPage, error) {
	listings, err := v.engine.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active listings: %w", err)
	}
	return v.render(listings), nil
}

func (v *CatalogView) render(listings []models.Listing) *CatalogPage {
	maxPage := len(listings) / v.pageSize
	if v.page > maxPage {
		v.page = maxPage
	}

	start := v.page * v.pageSize
	end := start + v.pageSize
	if start > len(listings) {
		start = len(listings)
	}
	if end > len(listings) {
		end = len(listings)
	}

	now := v.now()
	entries := make([]CatalogEntry, 0, end-start)
	for _, listing := range listings[start:end] {
		entries = append(entries, CatalogEntry{
			Listing:    listing,
			Seller:     v.names(listing.SellerID),
			PriceLabel: "$" + listing.Price.StringFixed(2),
			TimeLeft:   timeLeftString(now, listing.ExpiresAt),
		})
	}

	return &CatalogPage{
		Page:    v.page,
		MaxPage: maxPage,
		Entries: entries,
	}
}

// timeLeftString formats the remaining lifetime as "Nd Nh Nm Ns"
func timeLeftString(now, expiresAt time.Time) string {
	left := expiresAt.Sub(now)
	if left < 0 {
		left = 0
	}
	return fmt.Sprintf("%dd %dh %dm %ds",
		int(left.Hours())/24,
		int(left.Hours())%24,
		int(left.Minutes())%60,
		int(left.Seconds())%60)
}
