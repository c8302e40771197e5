package market

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogFixture(t *testing.T, listings int) (*testFixture, *CatalogView) {
	t.Helper()

	f := newFixture(t)
	f.engine.maxListings = listings + 1
	seller := uuid.New()
	for i := 0; i < listings; i++ {
		f.list(t, seller, "item-"+string(rune('a'+i)), 1, "2.50")
		f.advance(time.Second)
	}

	view := NewCatalogView(f.engine, 2, func(uuid.UUID) string { return "TestSeller" })
	view.now = func() time.Time { return f.clock }
	return f, view
}

func TestCatalogPagination(t *testing.T) {
	_, view := newCatalogFixture(t, 5)
	ctx := context.Background()

	page, err := view.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Page)
	assert.Equal(t, 2, page.MaxPage)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "item-a", page.Entries[0].Listing.Item.ItemID)
	assert.Equal(t, "item-b", page.Entries[1].Listing.Item.ItemID)

	page, err = view.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, "item-c", page.Entries[0].Listing.Item.ItemID)

	page, err = view.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "item-e", page.Entries[0].Listing.Item.ItemID)
}

func TestCatalogNavigationWrapsAround(t *testing.T) {
	_, view := newCatalogFixture(t, 5)
	ctx := context.Background()

	// Last page is 2; advancing past it wraps to the first.
	_, err := view.Seek(ctx, 2)
	require.NoError(t, err)
	page, err := view.NextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Page)

	page, err = view.PrevPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
}

func TestCatalogSeekClampsToLastPage(t *testing.T) {
	_, view := newCatalogFixture(t, 5)

	page, err := view.Seek(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
}

func TestCatalogProjection(t *testing.T) {
	_, view := newCatalogFixture(t, 1)

	page, err := view.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)

	entry := page.Entries[0]
	assert.Equal(t, "TestSeller", entry.Seller)
	assert.Equal(t, "$2.50", entry.PriceLabel)
	// One second elapsed since creation.
	assert.Equal(t, "6d 23h 59m 59s", entry.TimeLeft)

	// Display text is a projection; the stored descriptor carries none of it.
	assert.Empty(t, entry.Listing.Item.Metadata)
}

func TestCatalogExcludesExpired(t *testing.T) {
	f, view := newCatalogFixture(t, 3)

	f.advance(testLifetime)

	page, err := view.Current(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.Equal(t, 0, page.MaxPage)
}

func TestCatalogDefaultsPageSize(t *testing.T) {
	f := newFixture(t)

	view := NewCatalogView(f.engine, 0, nil)
	assert.Equal(t, DefaultPageSize, view.pageSize)

	// A misconfigured size must not make rendering divide by zero.
	page, err := view.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, page.MaxPage)
}

func TestCatalogConcurrentNavigation(t *testing.T) {
	_, view := newCatalogFixture(t, 5)
	ctx := context.Background()

	// Page state is shared across request goroutines; hammer it from several
	// at once. The race detector turns any unsynchronized access into a
	// failure, and every rendered page must stay within bounds.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				var page *CatalogPage
				var err error
				switch (seed + j) % 3 {
				case 0:
					page, err = view.Seek(ctx, j%4)
				case 1:
					page, err = view.NextPage(ctx)
				default:
					page, err = view.Current(ctx)
				}
				if !assert.NoError(t, err) {
					continue
				}
				assert.GreaterOrEqual(t, page.Page, 0)
				assert.LessOrEqual(t, page.Page, page.MaxPage)
			}
		}(i)
	}
	wg.Wait()
}

func TestTimeLeftString(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "7d 0h 0m 0s", timeLeftString(now, now.Add(7*24*time.Hour)))
	assert.Equal(t, "0d 1h 30m 5s", timeLeftString(now, now.Add(time.Hour+30*time.Minute+5*time.Second)))
	assert.Equal(t, "0d 0h 0m 0s", timeLeftString(now, now.Add(-time.Minute)))
}
